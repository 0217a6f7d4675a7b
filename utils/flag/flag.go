/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package.
	Binaries must call flag.Parse() in main, tests never parse.

TODO(jamie): move to more powerful cli lib https://github.com/spf13/cobra
*/

package flag

import (
	"flag"
)

const (
	APIServer = "api_server"
	Worker    = "worker"
)

var (
	IsDevelopment  = flag.Bool("dev", true, "set to true if the current run is for development. default value is true")
	ServiceName    = flag.String("service", APIServer, "'api_server' or 'worker'")
	AppSettingPath = flag.String("app_setting_path", "", "path to the worker app setting yaml")
)
