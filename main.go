package main

import (
	"github.com/TiltedBl0ck/Tilt-bot-sub000/cmd"
)

func main() {
	cmd.Execute()
}
