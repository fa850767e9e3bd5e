package linker

import "github.com/tliron/commonlog"

// logger is looked up on each use so that it follows commonlog.Configure calls made after package init.
func logger() commonlog.Logger {
	return commonlog.GetLogger("bclink.linker")
}
