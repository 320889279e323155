package common

import (
	"fmt"
	"strconv"
	"strings"
)

// Identity names one SAP instance and carries the password of its owner.
// It is immutable once built by NewIdentity.
type Identity struct {
	SID      string
	Instance string
	Password string
}

// NewIdentity validates the fields and zero-pads the instance number to two
// digits. The password is registered for log redaction.
func NewIdentity(sid, instance, password string) (Identity, error) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return Identity{}, fmt.Errorf("%w: sid must not be empty", ErrValidation)
	}
	inst, err := PadInstance(instance)
	if err != nil {
		return Identity{}, err
	}
	RegisterSecret(password)
	return Identity{SID: sid, Instance: inst, Password: password}, nil
}

// PadInstance left-pads an instance number with zeros to two characters.
func PadInstance(instance string) (string, error) {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return "", fmt.Errorf("%w: instance must not be empty", ErrValidation)
	}
	if _, err := strconv.ParseUint(instance, 10, 8); err != nil {
		return "", fmt.Errorf("%w: instance %q is not a number", ErrValidation, instance)
	}
	if len(instance) > 2 {
		return "", fmt.Errorf("%w: instance %q has more than two digits", ErrValidation, instance)
	}
	if len(instance) == 1 {
		instance = "0" + instance
	}
	return instance, nil
}

// SidAdm returns the OS user that owns the instance, <sid>adm in lowercase.
func (id Identity) SidAdm() string {
	return strings.ToLower(id.SID) + "adm"
}
