// Package config загружает конфигурацию runner'а через viper.
//
// Источники по возрастанию приоритета:
//   - встроенные значения по умолчанию (пайплайн MediaCorr)
//   - YAML файл: --config или mediacorr.yaml в ., ./config, $HOME/.mediacorr
//   - переменные окружения MEDIACORR_* (MEDIACORR_PIPELINE_NAMESPACE, ...)
//   - DB_URL и RABBITMQ_URL, как у остальных сервисов
//
// Без файла конфигурации runner выполняет пять jobs MediaCorr:
// sources → ingestor → filter → classifier → correlator.
package config
