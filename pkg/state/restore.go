// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Restore loads the record in slot. An empty slot, a record of another
// version or an invalid record is replaced by the defaults, which are saved
// once. restored reports whether the stored record was used.
func Restore(ctx context.Context, store Store, slot string, log logrus.FieldLogger) (s State, restored bool, err error) {
	log = log.WithField("slot", slot)
	log.WithField("version", SchemaVersion).Info("trying to restore state")

	saved, found, err := store.Load(ctx, slot)
	if err != nil && !errors.Is(err, ErrCorruptRecord) {
		return Defaults(), false, fmt.Errorf("load state: %w", err)
	}

	if err == nil && found {
		verr := saved.Validate()
		if verr == nil {
			log.WithField("version", saved.Version).Info("successfully restored state")
			return saved, true, nil
		}
		if saved.Version == SchemaVersion {
			log.WithError(verr).Warn("stored state out of range")
		}
	}

	log.WithField("version", saved.Version).
		Infof("could not restore state (found version %d), sticking with defaults", saved.Version)

	defaults := Defaults()
	if err := store.Save(ctx, slot, defaults); err != nil {
		return defaults, false, fmt.Errorf("save default state: %w", err)
	}
	return defaults, false, nil
}
