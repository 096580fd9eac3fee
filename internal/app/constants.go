package app

const (
	Name           = "rovlink"
	ConfigFilename = "config.json"
	LogFilename    = "rovlink.log"
	LinkLockName   = "rovlink-link"
)
