package main

import "clinica-medicos/cmd"

func main() {
	cmd.Execute()
}
