package main

import "qwikchat/internal/app"

func main() {
	app.RunClient()
}
