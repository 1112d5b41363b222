package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"traderelay/internal/command"
	"traderelay/internal/journal"
	"traderelay/internal/order"
	"traderelay/internal/venue"
)

// startAPIServer 暴露指令面 HTTP 接口。聊天网关（Telegram webhook 等）
// 在此边界接入，消息协议细节不进入核心。
func startAPIServer(ctx context.Context, router *command.Router, j *journal.Journal, port int, logger *zap.Logger) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handleCreateOrder(w, r, router, logger)
		case http.MethodGet:
			handleListOrders(w, r, router, logger)
		case http.MethodDelete:
			handleCancelOrder(w, r, router)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/commands", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handleCommand(w, r, router, logger)
	})

	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 200
		if qs := q.Get("limit"); qs != "" {
			if v, err := strconv.Atoi(qs); err == nil && v > 0 {
				if v > 1000 {
					v = 1000
				}
				limit = v
			}
		}

		eventType := journal.EventType("")
		if typ := strings.TrimSpace(q.Get("type")); typ != "" {
			eventType = journal.EventType(strings.ToLower(typ))
		}

		events, err := j.ListEvents(r.Context(), eventType, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, events)
	})

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("关闭指令接口失败", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("指令接口异常", zap.Error(err))
		}
	}()

	logger.Info("指令接口已启动", zap.String("addr", addr))
	return nil
}

type createOrderRequest struct {
	Owner         string  `json:"owner"`
	Platform      string  `json:"platform"`
	Action        string  `json:"action"`
	Amount        float64 `json:"amount"`
	Asset         string  `json:"asset"`
	TargetPrice   float64 `json:"target_price"`
	WalletRef     string  `json:"wallet_ref"`
	NotifyChannel string  `json:"notify_channel"`
}

func handleCreateOrder(w http.ResponseWriter, r *http.Request, router *command.Router, logger *zap.Logger) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	action, _ := order.ParseAction(req.Action)
	platform, _ := venue.ParsePlatform(req.Platform)

	ord, err := router.CreateLimitOrder(r.Context(), order.CreateRequest{
		Owner:         req.Owner,
		Platform:      platform,
		Action:        action,
		Amount:        req.Amount,
		Asset:         req.Asset,
		TargetPrice:   req.TargetPrice,
		WalletRef:     req.WalletRef,
		NotifyChannel: req.NotifyChannel,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, logger, http.StatusCreated, ord)
}

func handleListOrders(w http.ResponseWriter, r *http.Request, router *command.Router, logger *zap.Logger) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, logger, http.StatusOK, router.ListOrders(owner))
}

func handleCancelOrder(w http.ResponseWriter, r *http.Request, router *command.Router) {
	q := r.URL.Query()
	owner := strings.TrimSpace(q.Get("owner"))
	id, err := strconv.ParseInt(q.Get("id"), 10, 64)
	if owner == "" || err != nil {
		http.Error(w, "owner and id are required", http.StatusBadRequest)
		return
	}

	if err := router.CancelOrder(r.Context(), owner, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commandRequest struct {
	Owner     string `json:"owner"`
	WalletRef string `json:"wallet_ref"`
	Channel   string `json:"channel"`
	Text      string `json:"text"`
}

type commandResponse struct {
	Reply string `json:"reply"`
}

func handleCommand(w http.ResponseWriter, r *http.Request, router *command.Router, logger *zap.Logger) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Owner) == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}

	reply, err := router.Handle(r.Context(), req.Owner, req.WalletRef, req.Channel, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, logger, http.StatusOK, commandResponse{Reply: reply})
}

// writeError 把核心的类型化错误映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, order.ErrValidation), errors.Is(err, command.ErrUnrecognized):
		status = http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, order.ErrInvalidState):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Warn("写入响应失败", zap.Error(err))
	}
}
