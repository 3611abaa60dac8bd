package main

import "meter-backend/internal/app"

func main() {
	app.Run()
}
