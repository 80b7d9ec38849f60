package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"nhbenergy/core/types"
	"nhbenergy/crypto"
	"nhbenergy/gateway/middleware"
	"nhbenergy/native/bank"
	"nhbenergy/native/feecollector"
	"nhbenergy/native/lock"
	"nhbenergy/native/rewards"
)

const maxBodyBytes = 1 << 16

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func caller(r *http.Request) [20]byte {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	return principal.Address
}

func parseUintParam(w http.ResponseWriter, raw, name string) (uint64, bool) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return value, true
}

func parseAddressParam(w http.ResponseWriter, raw string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid address: %v", err))
		return crypto.Address{}, false
	}
	return addr, true
}

type lotRequest struct {
	Nonce  uint64 `json:"nonce"`
	Amount string `json:"amount"`
	Epochs uint64 `json:"epochs,omitempty"`
}

// payment builds the locked token payment described by the request.
func (s *Server) lotPayment(w http.ResponseWriter, req lotRequest) (types.Payment, bool) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return types.Payment{}, false
	}
	token := s.deps.Processor.LockParams().LockedToken
	return types.Payment{Token: token, Nonce: req.Nonce, Amount: amount}, true
}

// --- user operations ---

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount     string `json:"amount"`
		LockEpochs uint64 `json:"lock_epochs"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := s.deps.Processor.LockTokens(r.Context(), caller(r), amount, req.LockEpochs)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req lotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payment, ok := s.lotPayment(w, req)
	if !ok {
		return
	}
	receipt, err := s.deps.Processor.Unlock(r.Context(), caller(r), payment)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleUnlockEarly(w http.ResponseWriter, r *http.Request) {
	var req lotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payment, ok := s.lotPayment(w, req)
	if !ok {
		return
	}
	receipt, err := s.deps.Processor.UnlockEarly(r.Context(), caller(r), payment)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleReduceLock(w http.ResponseWriter, r *http.Request) {
	var req lotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payment, ok := s.lotPayment(w, req)
	if !ok {
		return
	}
	receipt, err := s.deps.Processor.ReduceLockPeriod(r.Context(), caller(r), payment, req.Epochs)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleSendFees(w http.ResponseWriter, r *http.Request) {
	sent, err := s.deps.Processor.SendFeesToCollector(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"forwarded": newPendingFeesView(sent)})
}

func (s *Server) handleDepositFees(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  string `json:"token"`
		Nonce  uint64 `json:"nonce"`
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment := types.Payment{Token: req.Token, Nonce: req.Nonce, Amount: amount}
	if err := s.deps.Processor.DepositSwapFees(r.Context(), caller(r), payment); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"week": s.deps.Processor.CurrentWeek()})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Week *uint64 `json:"week"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	week := s.deps.Processor.CurrentWeek()
	if req.Week != nil {
		week = *req.Week
	}
	result, err := s.deps.Processor.ClaimRewards(r.Context(), caller(r), week)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newClaimView(result))
}

// --- admin ---

func (s *Server) handleSetPenalty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinBps uint64 `json:"min_bps"`
		MaxBps uint64 `json:"max_bps"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Processor.SetPenaltyPercentage(r.Context(), caller(r), req.MinBps, req.MaxBps); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.handleParams(w, r)
}

func (s *Server) handleSetFeesBurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bps uint64 `json:"bps"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Processor.SetFeesBurnPercentage(r.Context(), caller(r), req.Bps); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.handleParams(w, r)
}

func (s *Server) handleSetFeesCollector(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address crypto.Address `json:"address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Processor.SetFeesCollectorAddress(r.Context(), caller(r), req.Address); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.handleParams(w, r)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To     crypto.Address `json:"to"`
		Token  string         `json:"token"`
		Amount string         `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Processor.MintTokens(r.Context(), caller(r), req.To, req.Token, amount); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Module string `json:"module"`
		Paused bool   `json:"paused"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Module {
	case lock.ModuleName, rewards.ModuleName, feecollector.ModuleName:
	default:
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown module %q", req.Module))
		return
	}
	s.deps.Pauses.Set(req.Module, req.Paused)
	s.logger.Warn("module pause toggled", "module", req.Module, "paused", req.Paused, "by", crypto.Address(caller(r)).String())
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"module": req.Module, "paused": req.Paused})
}

func (s *Server) handleAdvanceEpoch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Advancer == nil {
		middleware.WriteError(w, http.StatusConflict, "epoch clock is not manual")
		return
	}
	var req struct {
		Epochs uint64 `json:"epochs"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Epochs == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "epochs must be positive")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"epoch": s.deps.Advancer.Advance(req.Epochs)})
}

// --- views ---

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	p := s.deps.Processor
	settings, err := p.LockSettings()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	params := p.LockParams()
	middleware.WriteJSON(w, http.StatusOK, paramsView{
		Epoch:                p.CurrentEpoch(),
		Week:                 p.CurrentWeek(),
		BaseToken:            params.BaseToken,
		LockedToken:          params.LockedToken,
		LockOptions:          params.LockOptions,
		ReductionGranularity: params.ReductionGranularity,
		FeeForwardInterval:   params.FeeForwardInterval,
		PenaltyMinBps:        settings.Penalty.Min,
		PenaltyMaxBps:        settings.Penalty.Max,
		FeesBurnBps:          settings.FeesBurnBps,
		FeesCollector:        addressString(settings.FeesCollector),
		LastForwardEpoch:     settings.LastForwardEpoch,
		PendingFees:          newPendingFeesView(settings.Pending),
	})
}

func (s *Server) handleEnergy(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, chi.URLParam(r, "addr"))
	if !ok {
		return
	}
	entry, err := s.deps.Processor.Energy(addr)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newEnergyView(entry))
}

func (s *Server) handleClaimProgress(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, chi.URLParam(r, "addr"))
	if !ok {
		return
	}
	p := s.deps.Processor
	progress, err := p.ClaimProgress(addr)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	next, err := p.WeekWeight(addr, p.CurrentWeek()+1)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"claimed_through_week": progress.Week,
		"energy":               formatAmount(progress.Energy),
		"next_week":            next.Week,
		"next_week_energy":     formatAmount(next.UserEnergy),
		"next_week_total":      formatAmount(next.TotalEnergy),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, chi.URLParam(r, "addr"))
	if !ok {
		return
	}
	var nonce uint64
	if raw := r.URL.Query().Get("nonce"); raw != "" {
		if nonce, ok = parseUintParam(w, raw, "nonce"); !ok {
			return
		}
	}
	token := chi.URLParam(r, "token")
	balance, err := s.deps.Processor.Balance(addr, token, nonce)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, paymentView{Token: bank.NormalizeToken(token), Nonce: nonce, Amount: formatAmount(balance)})
}

func (s *Server) handleLot(w http.ResponseWriter, r *http.Request) {
	nonce, ok := parseUintParam(w, chi.URLParam(r, "nonce"), "nonce")
	if !ok {
		return
	}
	lot, err := s.deps.Processor.Lot(nonce)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, lotView{
		Nonce:        lot.Nonce,
		Owner:        addressString(lot.Owner),
		UnlockEpoch:  lot.UnlockEpoch,
		CreatedEpoch: lot.CreatedEpoch,
	})
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	week, ok := parseUintParam(w, chi.URLParam(r, "week"), "week")
	if !ok {
		return
	}
	snapshot, err := s.deps.Processor.WeekSnapshot(week)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	pending, err := s.deps.Processor.PendingDeposits(week)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newWeekView(week, snapshot, pending))
}

func (s *Server) handlePenaltyQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	epochs, ok := parseUintParam(w, r.URL.Query().Get("epochs"), "epochs")
	if !ok {
		return
	}
	penalty, err := s.deps.Processor.PenaltyAmount(amount, epochs)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"amount": amount.String(), "penalty": formatAmount(penalty)})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, ok := parseUintParam(w, raw, "limit")
		if !ok {
			return
		}
		limit = int(n)
	}
	middleware.WriteJSON(w, http.StatusOK, s.deps.Events.Recent(limit))
}
