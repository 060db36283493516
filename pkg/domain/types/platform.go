package types

import (
	"github.com/m-mizutani/goerr/v2"
)

// Platform identifies an external messaging platform
type Platform string

const (
	PlatformSlack  Platform = "slack"
	PlatformGitHub Platform = "github"
)

// AllPlatforms returns all supported platforms in sync order
func AllPlatforms() []Platform {
	return []Platform{
		PlatformSlack,
		PlatformGitHub,
	}
}

// IsValid checks if the platform is supported
func (p Platform) IsValid() bool {
	switch p {
	case PlatformSlack,
		PlatformGitHub:
		return true
	default:
		return false
	}
}

// Validate returns an error for unsupported platforms
func (p Platform) Validate() error {
	if !p.IsValid() {
		return goerr.New("unsupported platform", goerr.V("platform", p))
	}
	return nil
}

func (p Platform) String() string {
	return string(p)
}

// ParsePlatform parses a string into a Platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}
