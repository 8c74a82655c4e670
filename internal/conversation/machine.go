package conversation

import (
	"context"
	"errors"
	"strings"

	"slh-wallet-bot/internal/custody"
	"slh-wallet-bot/internal/models"
)

// Reply names a localized message for the transport layer to render.
// A zero Reply means the message produced no response (silently ignored).
type Reply struct {
	Key    string
	Params map[string]string
}

func (r Reply) IsZero() bool { return r.Key == "" }

// Machine consumes non-command text and advances the per-chat interaction
// step. Evaluation order is fixed and load-bearing:
//
//  1. language tokens win over everything, including pending custody
//     steps, and never consume the step;
//  2. a parked import/external flow consumes the message next;
//  3. a custody-selection token (1/2/3) starts setup for fresh wallets;
//  4. anything else is ignored here (command handlers run separately).
type Machine struct {
	custody   *custody.Manager
	languages map[string]bool
}

func NewMachine(mgr *custody.Manager, languages []string) *Machine {
	langs := make(map[string]bool, len(languages))
	for _, l := range languages {
		langs[strings.ToLower(l)] = true
	}
	return &Machine{custody: mgr, languages: langs}
}

// Handle runs one transition for an inbound text message.
func (m *Machine) Handle(ctx context.Context, chatID int64, text string) (Reply, error) {
	trimmed := strings.TrimSpace(text)

	user, err := m.custody.EnsureUser(ctx, chatID)
	if err != nil {
		return Reply{}, err
	}

	// Language selection is a global side channel, not a blocking state.
	// A chat mid-import that types "en" switches language and stays parked
	// on its custody step.
	if lang := strings.ToLower(trimmed); m.languages[lang] {
		if _, err := m.custody.SetLanguage(ctx, chatID, lang); err != nil {
			return Reply{}, err
		}
		return Reply{Key: "lang_set", Params: map[string]string{"lang": lang}}, nil
	}

	switch user.PendingStep {
	case models.StepAwaitingPrivateKey:
		updated, err := m.custody.CompleteImport(ctx, chatID, trimmed)
		if err != nil {
			if errors.Is(err, custody.ErrInvalidKey) {
				return Reply{Key: "invalid_key"}, nil
			}
			return Reply{}, err
		}
		return Reply{Key: "wallet_imported", Params: map[string]string{"address": updated.Address}}, nil

	case models.StepAwaitingExternalAddress:
		updated, err := m.custody.CompleteExternal(ctx, chatID, trimmed)
		if err != nil {
			if errors.Is(err, custody.ErrInvalidAddress) {
				return Reply{Key: "invalid_address"}, nil
			}
			return Reply{}, err
		}
		return Reply{Key: "external_address_saved", Params: map[string]string{"address": updated.Address}}, nil
	}

	if user.Custody == models.CustodyNone {
		switch trimmed {
		case "1":
			updated, err := m.custody.BeginSetup(ctx, chatID, custody.ChoiceGenerate)
			if err != nil {
				return Reply{}, err
			}
			return Reply{Key: "wallet_created", Params: map[string]string{
				"address":    updated.Address,
				"privateKey": updated.PrivateKey,
			}}, nil
		case "2":
			if _, err := m.custody.BeginSetup(ctx, chatID, custody.ChoiceImport); err != nil {
				return Reply{}, err
			}
			return Reply{Key: "import_key"}, nil
		case "3":
			if _, err := m.custody.BeginSetup(ctx, chatID, custody.ChoiceExternal); err != nil {
				return Reply{}, err
			}
			return Reply{Key: "external_address_ask"}, nil
		}
	}

	// Not for us. Command handlers may still match the message.
	return Reply{}, nil
}
