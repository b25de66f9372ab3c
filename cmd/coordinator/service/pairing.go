package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stylehub/coordinator/cmd/coordinator/models"
	"github.com/stylehub/coordinator/common/logger"
)

// codeAlphabet omits look-alike characters since codes are read aloud
// and typed by hand.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 8

// ExchangeResult is the one-time payload of a successful pairing
// exchange. The secret is never reconstructable afterwards.
type ExchangeResult struct {
	AgentID   uuid.UUID        `json:"agent_id"`
	AgentType models.AgentType `json:"agent_type"`
	Secret    string           `json:"secret"`
}

// PairingService issues short-lived codes and exchanges them for
// permanent agent credentials.
type PairingService struct {
	pairings PairingStore
	agents   AgentStore
	ttl      time.Duration
	log      *logger.Logger
}

// NewPairingService creates a new pairing service
func NewPairingService(pairings PairingStore, agents AgentStore, ttl time.Duration, log *logger.Logger) *PairingService {
	return &PairingService{
		pairings: pairings,
		agents:   agents,
		ttl:      ttl,
		log:      log,
	}
}

// CreateCode issues a pending pairing code for a named agent
func (s *PairingService) CreateCode(ctx context.Context, agentName string, agentType models.AgentType) (*models.PairingCode, error) {
	if agentName == "" {
		return nil, fmt.Errorf("%w: agent_name is required", ErrValidation)
	}
	if !agentType.Valid() {
		return nil, fmt.Errorf("%w: unknown agent type %q", ErrValidation, agentType)
	}

	code, err := randomCode()
	if err != nil {
		return nil, err
	}

	p := &models.PairingCode{
		Code:      code,
		AgentName: agentName,
		AgentType: agentType,
		Status:    models.PairingPending,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.pairings.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("pairing code issued", "agent_name", agentName, "agent_type", agentType)
	return p, nil
}

// Exchange consumes a pending code and registers the agent. The code
// consume is conditional on its status, so a replayed exchange fails
// instead of minting a second credential.
func (s *PairingService) Exchange(ctx context.Context, code string) (*ExchangeResult, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}

	p, err := s.pairings.Consume(ctx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: invalid or expired pairing code", ErrUnauthorized)
	}

	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}

	agent := &models.Agent{
		ID:         uuid.New(),
		Name:       p.AgentName,
		Type:       p.AgentType,
		SecretHash: HashSecret(secret),
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, err
	}

	s.log.Info("agent registered", "agent_id", agent.ID, "name", agent.Name, "type", agent.Type)
	return &ExchangeResult{
		AgentID:   agent.ID,
		AgentType: agent.Type,
		Secret:    secret,
	}, nil
}

// HashSecret is the canonical digest of an agent secret. Stored at
// registration and recomputed on every authenticated request.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate agent secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
