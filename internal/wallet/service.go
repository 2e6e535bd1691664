package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/fxwallet/internal/exchange"
	"github.com/congo-pay/fxwallet/internal/logging"
	"github.com/congo-pay/fxwallet/internal/notification"
)

// CurrencyConverter converts an amount between two currency codes.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// Service exposes the externally visible wallet operations. Every error it
// returns is an *OutcomeError.
type Service struct {
	repo      Repository
	engine    *Engine
	converter CurrencyConverter
	rates     exchange.RateSource
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService builds the wallet facade.
func NewService(repo Repository, engine *Engine, converter CurrencyConverter, rates exchange.RateSource, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		repo:      repo,
		engine:    engine,
		converter: converter,
		rates:     rates,
		notifier:  notifier,
		logger:    logger,
	}
}

// GetWallet loads a wallet. When requestedCurrency is set the reported
// balance is converted; the stored wallet is left untouched.
func (s *Service) GetWallet(ctx context.Context, id, requestedCurrency string) (View, error) {
	w, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}

	view := w.view()
	target := exchange.NormalizeCurrency(requestedCurrency)
	if target == "" {
		return view, nil
	}

	converted, err := s.converter.Convert(ctx, w.Balance, w.Currency, target)
	if err != nil {
		if errors.Is(err, exchange.ErrCurrencyNotFound) {
			s.logger.Warn("unknown display currency", "wallet_id", id, "currency", target)
			return View{}, fail(OutcomeValidation, fmt.Sprintf("not a valid currency: %s", target), err)
		}
		s.logger.Error("convert wallet balance", "wallet_id", id, "currency", target, "error", err)
		return View{}, fail(OutcomeFailure, "failed to convert wallet balance", err)
	}

	view.Balance = converted
	view.Currency = target
	return view, nil
}

// CreateWallet opens a wallet after checking its currency has a known rate.
func (s *Service) CreateWallet(ctx context.Context, req CreateRequest) (View, error) {
	currency := exchange.NormalizeCurrency(req.Currency)
	if !exchange.ValidCurrencyCode(currency) {
		return View{}, fail(OutcomeValidation, fmt.Sprintf("not a valid currency: %q", req.Currency), nil)
	}
	if req.StartingBalance.IsNegative() {
		return View{}, fail(OutcomeValidation, "starting balance must not be negative", nil)
	}

	if _, err := s.rates.GetRate(ctx, currency); err != nil {
		if errors.Is(err, exchange.ErrCurrencyNotFound) {
			s.logger.Warn("invalid wallet currency", "currency", currency)
			return View{}, fail(OutcomeValidation, fmt.Sprintf("not a valid currency: %s", currency), err)
		}
		s.logger.Error("lookup rate for new wallet", "currency", currency, "error", err)
		return View{}, fail(OutcomeFailure, "failed to create wallet", err)
	}

	w := &Wallet{Balance: req.StartingBalance, Currency: currency}
	if err := s.repo.Create(ctx, w); err != nil {
		s.logger.Error("create wallet", "currency", currency, "error", err)
		return View{}, fail(OutcomeFailure, "failed to create wallet", err)
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindWalletCreated,
		Destination: w.ID,
		Body:        fmt.Sprintf("opened with %s %s", w.Balance, w.Currency),
	})
	return w.view(), nil
}

// AdjustBalance converts the requested amount into the wallet's currency and
// applies the requested strategy through the mutation engine.
func (s *Service) AdjustBalance(ctx context.Context, req AdjustRequest) (View, error) {
	if !req.Amount.IsPositive() {
		return View{}, fail(OutcomeValidation, "amount must be a positive decimal", nil)
	}
	currency := exchange.NormalizeCurrency(req.Currency)
	if !exchange.ValidCurrencyCode(currency) {
		return View{}, fail(OutcomeValidation, fmt.Sprintf("not a valid currency: %q", req.Currency), nil)
	}

	w, err := s.load(ctx, req.WalletID)
	if err != nil {
		return View{}, err
	}

	amount, err := s.converter.Convert(ctx, req.Amount, currency, w.Currency)
	if err != nil {
		if errors.Is(err, exchange.ErrCurrencyNotFound) {
			s.logger.Warn("unknown adjustment currency", "wallet_id", w.ID, "currency", currency)
			return View{}, fail(OutcomeValidation, fmt.Sprintf("currency not found: %s", currency), err)
		}
		s.logger.Error("convert adjustment amount",
			"wallet_id", w.ID, "amount", req.Amount, "from", currency, "to", w.Currency, "error", err)
		return View{}, fail(OutcomeFailure, "failed to convert amount", err)
	}

	updated, err := s.engine.Adjust(ctx, w.ID, req.Kind, amount)
	if err != nil {
		return View{}, s.adjustFailure(w.ID, req.Kind, amount, err)
	}

	s.logger.Info("wallet balance adjusted",
		"wallet_id", updated.ID,
		"strategy", string(req.Kind),
		"amount", amount.String(),
		"currency", updated.Currency,
		"version", updated.Version)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindBalanceAdjusted,
		Destination: updated.ID,
		Body:        fmt.Sprintf("%s %s %s, balance %s %s", req.Kind, amount, updated.Currency, updated.Balance, updated.Currency),
	})
	return updated.view(), nil
}

func (s *Service) adjustFailure(walletID string, kind Kind, amount decimal.Decimal, err error) *OutcomeError {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		s.logger.Warn("insufficient funds", "wallet_id", walletID, "amount", amount.String())
		return fail(OutcomeBusiness, "insufficient funds", err)
	case errors.Is(err, ErrConcurrencyConflict):
		s.logger.Warn("wallet busy, retries exhausted", "wallet_id", walletID)
		return fail(OutcomeConflict, "wallet was modified concurrently, try again", err)
	case errors.Is(err, ErrWalletNotFound):
		return fail(OutcomeNotFound, fmt.Sprintf("wallet '%s' not found", walletID), err)
	case errors.Is(err, ErrUnknownStrategy):
		return fail(OutcomeValidation, fmt.Sprintf("unknown strategy: %s", kind), err)
	default:
		s.logger.Error("adjust wallet balance", "wallet_id", walletID, "strategy", string(kind), "error", err)
		return fail(OutcomeFailure, "failed to adjust wallet balance", err)
	}
}

func (s *Service) load(ctx context.Context, id string) (Wallet, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			s.logger.Warn("wallet not found", "wallet_id", id)
			return Wallet{}, fail(OutcomeNotFound, fmt.Sprintf("wallet '%s' not found", id), err)
		}
		s.logger.Error("load wallet", "wallet_id", id, "error", err)
		return Wallet{}, fail(OutcomeFailure, "failed to load wallet", err)
	}
	return w, nil
}

func (s *Service) notify(ctx context.Context, message notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, message); err != nil {
		s.logger.Warn("send notification", "kind", message.Kind, "wallet_id", message.Destination, "error", err)
	}
}
