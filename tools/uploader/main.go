package main

import "github.com/TrevorEdris/transfer-utils/tools/uploader/cmd"

func main() {
	cmd.Execute()
}
