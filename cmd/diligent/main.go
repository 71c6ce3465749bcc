// Command diligent runs networks of probe edges under the forced update
// manager.
package main

func main() {
	Execute()
}
