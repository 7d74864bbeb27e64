package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDatabaseConnect    = errors.New("failed to connect to database")
	ErrDealNotFound       = errors.New("deal not found")
	ErrGatewayNotFound    = errors.New("gateway not found for network")
	ErrInvalidConfig      = errors.New("invalid gateway configuration")
	ErrGatewayExists      = errors.New("gateway already exists in registry")
	ErrFactoryNotProvided = errors.New("gateway factory not provided")
	ErrInvalidChainType   = errors.New("invalid chain type")
	ErrNotImplemented     = errors.New("functionality not implemented")
)

// ValidationError indicates malformed or missing caller input. It is never
// retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// UnsupportedNetworkError indicates a network outside the supported set.
type UnsupportedNetworkError struct {
	Network string
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("unsupported network: %s", e.Network)
}

// NewUnsupportedNetworkError creates an UnsupportedNetworkError.
func NewUnsupportedNetworkError(network string) *UnsupportedNetworkError {
	return &UnsupportedNetworkError{Network: network}
}

// NotFoundError indicates a missing deal, transaction, or step.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given entity and id.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// InvalidStateError indicates an operation not valid for the entity's
// current state, e.g. retrying a step that has not failed.
type InvalidStateError struct {
	Entity string
	State  string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s in state %s", e.Op, e.Entity, e.State)
}

// NewInvalidStateError creates an InvalidStateError.
func NewInvalidStateError(entity, state, op string) *InvalidStateError {
	return &InvalidStateError{Entity: entity, State: state, Op: op}
}

// ChainCallError indicates an on-chain call reverted or the RPC failed.
type ChainCallError struct {
	Network string
	Method  string
	Cause   error
}

func (e *ChainCallError) Error() string {
	return fmt.Sprintf("chain call %s on %s failed: %v", e.Method, e.Network, e.Cause)
}

func (e *ChainCallError) Unwrap() error { return e.Cause }

// NewChainCallError wraps the underlying revert reason or RPC failure.
func NewChainCallError(network, method string, cause error) *ChainCallError {
	return &ChainCallError{Network: network, Method: method, Cause: cause}
}

// BridgeFailedError indicates the bridge provider reported a terminal
// failure for an execution.
type BridgeFailedError struct {
	ExecutionID string
	SubStatus   string
}

func (e *BridgeFailedError) Error() string {
	return fmt.Sprintf("bridge execution %s failed: %s", e.ExecutionID, e.SubStatus)
}

// NewBridgeFailedError creates a BridgeFailedError.
func NewBridgeFailedError(executionID, subStatus string) *BridgeFailedError {
	return &BridgeFailedError{ExecutionID: executionID, SubStatus: subStatus}
}

// TimeoutError indicates a wall-clock budget was exhausted while waiting.
type TimeoutError struct {
	Op     string
	Budget string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded wait budget of %s", e.Op, e.Budget)
}

// NewTimeoutError creates a TimeoutError.
func NewTimeoutError(op, budget string) *TimeoutError {
	return &TimeoutError{Op: op, Budget: budget}
}

// PersistenceError indicates a document-store write failed.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence operation %s failed: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// NewPersistenceError wraps a failed store operation.
func NewPersistenceError(op string, cause error) *PersistenceError {
	return &PersistenceError{Op: op, Cause: cause}
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
