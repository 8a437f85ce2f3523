// Command facectl is the operator CLI: migrations, one-shot registry sync,
// identity listing and single-image encoding.
package main

func main() {
	Execute()
}
