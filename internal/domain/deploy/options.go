package deploy

import (
	"encoding/json"
	"fmt"
)

// TestLevel selects which tests the platform runs during a deployment.
type TestLevel string

const (
	// NoTestRun skips tests (not allowed in production orgs).
	NoTestRun TestLevel = "NoTestRun"
	// RunSpecifiedTests runs only Options.RunTests.
	RunSpecifiedTests TestLevel = "RunSpecifiedTests"
	// RunLocalTests runs every test outside managed packages.
	RunLocalTests TestLevel = "RunLocalTests"
	// RunAllTestsInOrg runs every test, managed packages included.
	RunAllTestsInOrg TestLevel = "RunAllTestsInOrg"
)

// ParseTestLevel maps a flag value onto a known TestLevel.
func ParseTestLevel(s string) (TestLevel, error) {
	level := TestLevel(s)
	if !level.Known() {
		return "", &ConfigError{Reason: fmt.Sprintf("unknown test level %q", s)}
	}

	return level, nil
}

// Known reports whether the level is one the platform accepts.
func (l TestLevel) Known() bool {
	switch l {
	case NoTestRun, RunSpecifiedTests, RunLocalTests, RunAllTestsInOrg:
		return true
	default:
		return false
	}
}

// Options is the deployOptions object of a deploy request.
type Options struct {
	AllowMissingFiles bool      `json:"allowMissingFiles"`
	AutoUpdatePackage bool      `json:"autoUpdatePackage"`
	CheckOnly         bool      `json:"checkOnly"`
	IgnoreWarnings    bool      `json:"ignoreWarnings"`
	PerformRetrieve   bool      `json:"performRetrieve"`
	PurgeOnDelete     bool      `json:"purgeOnDelete"`
	RollbackOnError   bool      `json:"rollbackOnError"`
	RunTests          []string  `json:"runTests"`
	SinglePackage     bool      `json:"singlePackage"`
	TestLevel         TestLevel `json:"testLevel"`
}

// DefaultOptions returns the options used when the caller overrides nothing.
func DefaultOptions() Options {
	return Options{
		RollbackOnError: true,
		SinglePackage:   true,
		RunTests:        nil,
		TestLevel:       RunLocalTests,
	}
}

// Validate rejects option combinations the platform would refuse.
func (o Options) Validate() error {
	if !o.TestLevel.Known() {
		return &ConfigError{Reason: fmt.Sprintf("unknown test level %q", o.TestLevel)}
	}

	if o.TestLevel == RunSpecifiedTests && len(o.RunTests) == 0 {
		return &ConfigError{Reason: "test level RunSpecifiedTests requires at least one test"}
	}

	return nil
}

// MarshalRequest renders the JSON part of a deploy request.
func (o Options) MarshalRequest() ([]byte, error) {
	return json.Marshal(struct {
		DeployOptions Options `json:"deployOptions"`
	}{
		DeployOptions: o,
	})
}

// OptionOverrides holds caller-supplied values; nil fields keep the default.
type OptionOverrides struct {
	AllowMissingFiles *bool
	AutoUpdatePackage *bool
	CheckOnly         *bool
	IgnoreWarnings    *bool
	PerformRetrieve   *bool
	PurgeOnDelete     *bool
	RollbackOnError   *bool
	// RunTests replaces the default test list when non-nil.
	RunTests      *[]string
	SinglePackage *bool
	TestLevel     *TestLevel
}

// Merge applies the overrides over DefaultOptions, key by key.
// A nil receiver yields the defaults.
func (o *OptionOverrides) Merge() Options {
	merged := DefaultOptions()
	if o == nil {
		return merged
	}

	setBool(&merged.AllowMissingFiles, o.AllowMissingFiles)
	setBool(&merged.AutoUpdatePackage, o.AutoUpdatePackage)
	setBool(&merged.CheckOnly, o.CheckOnly)
	setBool(&merged.IgnoreWarnings, o.IgnoreWarnings)
	setBool(&merged.PerformRetrieve, o.PerformRetrieve)
	setBool(&merged.PurgeOnDelete, o.PurgeOnDelete)
	setBool(&merged.RollbackOnError, o.RollbackOnError)
	setBool(&merged.SinglePackage, o.SinglePackage)

	if o.RunTests != nil {
		merged.RunTests = append([]string(nil), (*o.RunTests)...)
	}

	if o.TestLevel != nil {
		merged.TestLevel = *o.TestLevel
	}

	return merged
}

func setBool(dst, src *bool) {
	if src != nil {
		*dst = *src
	}
}
