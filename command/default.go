package command

const (
	JSONOutputFlag = "json"
	ConfigFlag     = "config"
	DataDirFlag    = "data-dir"
	LogLevelFlag   = "log-level"
)
