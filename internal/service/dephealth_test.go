package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newMockBotAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewDephealthService_TelegramOnly(t *testing.T) {
	mock := newMockBotAPI(t)

	// Используем изолированный Prometheus registry для тестов
	reg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(DephealthParams{
		ServiceID:      "test-cm-01",
		Group:          "catalog",
		TelegramAPIURL: mock.URL,
		CheckInterval:  5 * time.Second,
	}, testLogger(), reg)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestDephealthService_StartStop(t *testing.T) {
	mock := newMockBotAPI(t)
	reg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(DephealthParams{
		ServiceID:      "test-cm-02",
		Group:          "catalog",
		TelegramAPIURL: mock.URL,
		CheckInterval:  1 * time.Second,
	}, testLogger(), reg)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start не должен блокировать
	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка Start: %v", err)
	}

	// Даём время на первую проверку (интервал 1s + запас)
	time.Sleep(3 * time.Second)

	// Health возвращает map с ключами формата "dependency:host:port"
	found := false
	for key, val := range ds.Health() {
		if strings.HasPrefix(key, "telegram-bot-api:") {
			found = true
			if !val {
				t.Errorf("telegram-bot-api health = false для ключа %q, ожидалось true", key)
			}
		}
	}
	if !found {
		t.Errorf("Нет записи для telegram-bot-api в Health(): %v", ds.Health())
	}

	// Stop не должен паниковать
	ds.Stop()
}
