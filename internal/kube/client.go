package kube

import (
	"fmt"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// DefaultRequestTimeout — таймаут одного запроса к API server.
const DefaultRequestTimeout = 30 * time.Second

// NewConfig возвращает конфигурацию клиента.
//
// Без явного kubeconfig сначала пробуется in-cluster конфигурация
// (runner запущен pod'ом), затем стандартные правила загрузки:
// $KUBECONFIG, ~/.kube/config.
//
// requestTimeout ограничивает каждый запрос (create, delete, get), чтобы
// зависший API server не блокировал отправку job. 0 → DefaultRequestTimeout.
func NewConfig(kubeconfig string, requestTimeout time.Duration) (*rest.Config, error) {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	if kubeconfig == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			cfg.Timeout = requestTimeout
			return cfg, nil
		}
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		rules, &clientcmd.ConfigOverrides{},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	cfg.Timeout = requestTimeout
	return cfg, nil
}

// NewClient создаёт clientset по kubeconfig (см. NewConfig).
func NewClient(kubeconfig string, requestTimeout time.Duration) (kubernetes.Interface, error) {
	cfg, err := NewConfig(kubeconfig, requestTimeout)
	if err != nil {
		return nil, err
	}

	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client: %w", err)
	}
	return client, nil
}
