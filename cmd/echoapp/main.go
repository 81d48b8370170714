// echoapp runs the echo reference application as a real process.
package main

import (
	"github.com/fixturelabs/appharness/pkg/cli"
	"github.com/fixturelabs/appharness/pkg/echo"
)

func main() {
	cli.Execute("echoapp", "Echo demo application", echo.New)
}
