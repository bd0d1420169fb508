package main

import "comply/internal/app/server"

func main() {
	server.Run()
}
