// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses forms, renders pages, sets cookies
//	Service (Business layer) → validates, enforces rules, opens transactions
//	Repository (Data layer)  → reads/writes SQLite
//
// Services accept plain values (ids, names, small input structs), never
// *http.Request, and return apperror values that the handlers translate to
// status codes and flash messages.
//
// TRANSACTIONS:
// Every operation that touches more than one row set runs inside
// repository.Transactor.WithinTx. The callback receives a Store bound to
// the transaction and must use only that Store; the outer one would wait for
// the single pooled connection the transaction already holds.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/validation"
)

// MaxNameLength is the longest genre name, artist name or track title
// accepted.
const MaxNameLength = 150

// requireName trims s and checks it is present and not too long. label is
// the Portuguese field name used in the message.
func requireName(field, label, s string) (string, error) {
	s = strings.TrimSpace(s)
	rule := fmt.Sprintf("notblank,max=%d", MaxNameLength)
	if err := validation.ValidateVar(s, rule, field, label); err != nil {
		return "", firstFieldError(err)
	}
	return s, nil
}

// firstFieldError reduces validation.Errors to the single *apperror.AppError
// the forms display. Other errors pass through.
func firstFieldError(err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return verrs.First()
	}
	return err
}

// uniqueIDs drops duplicates and non-positive ids, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// SplitNames expands form values that may each hold several comma-separated
// names. Names are trimmed, empties dropped, and duplicates removed
// by model.NameKey; the first spelling wins.
func SplitNames(values []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			key := model.NameKey(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, name)
		}
	}
	return names
}

// normalizeEmail lower-cases and trims so lookups and the admin check agree.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
