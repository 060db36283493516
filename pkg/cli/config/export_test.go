package config

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(clientID, clientSecret, botToken, signingSecret, noAuthUID string) *Slack {
	return &Slack{
		clientID:      clientID,
		clientSecret:  clientSecret,
		botToken:      botToken,
		signingSecret: signingSecret,
		noAuthUID:     noAuthUID,
	}
}

// SetAPIURL points the Slack user lookup at a test server
func (x *Slack) SetAPIURL(u string) {
	x.apiURL = u
}

func NewGitHubForTest(clientID, clientSecret, webhookSecret string) *GitHub {
	return &GitHub{
		clientID:      clientID,
		clientSecret:  clientSecret,
		webhookSecret: webhookSecret,
	}
}

func NewSyncForTest(path string) *Sync {
	return &Sync{path: path}
}

func NewRepositoryForTest(backend string) *Repository {
	return &Repository{backend: backend}
}

var ParseSyncConfig = parseSyncConfig
