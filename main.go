package main

import "github.com/rizalfahlevi/booking-management/cmd"

func main() {
	cmd.Execute()
}
