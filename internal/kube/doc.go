// Package kube реализует исполнительный backend пайплайна поверх Kubernetes.
//
// Структура:
//   - client.go  — rest.Config (in-cluster, затем kubeconfig) и clientset
//   - backend.go — Backend: Submit, Await, Status
//   - errors.go  — ошибки backend
//
// Backend ничего не знает о порядке jobs: он отправляет один Job,
// ждёт его терминального условия и отдаёт снимок статуса. Порядок,
// таймауты и остановка run — забота пакета runner.
package kube
