package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
)

var (
	// ErrAlreadySubscribed rejects a subscribe for an address that is
	// already active.
	ErrAlreadySubscribed = errors.New("address is already subscribed")
	// ErrSubscriberNotFound is returned when unsubscribing an unknown or
	// already inactive address.
	ErrSubscriberNotFound = errors.New("subscriber not found")
	// ErrInvalidAddress rejects malformed email addresses.
	ErrInvalidAddress = errors.New("invalid email address")
)

// SubscriberService manages the report recipient list. Rows are never hard
// deleted; unsubscribing deactivates and re-subscribing reactivates.
type SubscriberService struct {
	store ports.SubscriberStore
}

// NewSubscriberService wires the subscriber store.
func NewSubscriberService(store ports.SubscriberStore) *SubscriberService {
	return &SubscriberService{store: store}
}

// Subscribe registers an address. An active duplicate is a conflict; a
// previously deactivated address is reactivated in place.
func (s *SubscriberService) Subscribe(ctx context.Context, address string) (domain.Subscriber, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return domain.Subscriber{}, err
	}

	existing, err := s.store.SubscriberByAddress(ctx, address)
	switch {
	case err == nil && existing.Active:
		return domain.Subscriber{}, ErrAlreadySubscribed
	case err == nil:
		existing.Active = true
		if saveErr := s.store.SaveSubscriber(ctx, existing); saveErr != nil {
			return domain.Subscriber{}, fmt.Errorf("reactivate subscriber: %w", saveErr)
		}
		return existing, nil
	case errors.Is(err, ports.ErrNotFound):
		subscriber := domain.Subscriber{
			ID:      domain.NewID(),
			Address: address,
			Active:  true,
			AddedAt: time.Now().UTC(),
		}
		if saveErr := s.store.SaveSubscriber(ctx, subscriber); saveErr != nil {
			return domain.Subscriber{}, fmt.Errorf("save subscriber: %w", saveErr)
		}
		return subscriber, nil
	default:
		return domain.Subscriber{}, fmt.Errorf("lookup subscriber: %w", err)
	}
}

// Unsubscribe deactivates an address without deleting the row.
func (s *SubscriberService) Unsubscribe(ctx context.Context, address string) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}

	existing, err := s.store.SubscriberByAddress(ctx, address)
	if errors.Is(err, ports.ErrNotFound) {
		return ErrSubscriberNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup subscriber: %w", err)
	}
	if !existing.Active {
		return ErrSubscriberNotFound
	}

	existing.Active = false
	if err := s.store.SaveSubscriber(ctx, existing); err != nil {
		return fmt.Errorf("deactivate subscriber: %w", err)
	}
	return nil
}

// List returns all subscribers, active and inactive.
func (s *SubscriberService) List(ctx context.Context) ([]domain.Subscriber, error) {
	return s.store.Subscribers(ctx)
}

func normalizeAddress(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if _, err := mail.ParseAddress(address); err != nil {
		return "", ErrInvalidAddress
	}
	return address, nil
}
