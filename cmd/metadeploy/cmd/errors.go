package cmd

import "errors"

var (
	errUnknownLogLevel  = errors.New("unknown log level")
	errDeploymentFailed = errors.New("deployment did not succeed")
	errEmailRefused     = errors.New("email was not accepted")
	errSettingsExist    = errors.New("settings file already exists, use --force to overwrite")
	errXORKeyRequired   = errors.New("xor key is required, pass --xor-key or set SF_XOR_KEY")
)
