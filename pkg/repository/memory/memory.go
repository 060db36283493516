package memory

import (
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	user       *userRepository
	credential *credentialRepository
	message    *messageRepository
	tokens     *tokenStore
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		user:       newUserRepository(),
		credential: newCredentialRepository(),
		message:    newMessageRepository(),
		tokens:     newTokenStore(),
	}
}

func (m *Memory) User() interfaces.UserRepository {
	return m.user
}

func (m *Memory) Credential() interfaces.CredentialRepository {
	return m.credential
}

func (m *Memory) Message() interfaces.MessageRepository {
	return m.message
}

func (m *Memory) Close() error {
	return nil
}
