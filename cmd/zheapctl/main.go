// Command zheapctl reserves a Zebra Block Heap and drives it from the
// command line, for manual exploration and demos.
package main

func main() {
	execute()
}
