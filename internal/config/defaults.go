package config

import "time"

// Значения по умолчанию.
const (
	DefaultPipelineName   = "mediacorr"
	DefaultNamespace      = "mediacorr"
	DefaultTimeout        = 30 * time.Minute
	DefaultPollInterval   = 2 * time.Second
	DefaultReplaceTimeout = 2 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
	DefaultServeAddr      = ":8080"
	DefaultImageTag       = "latest"
)

// DefaultJobs возвращает jobs пайплайна MediaCorr.
//
// Каждый job — отдельный образ mediacorr-<name>, запускающий модуль
// app.<name>. Данные передаются через общий PVC:
//
//	sources    → data/raw
//	ingestor   data/raw → data/parsed
//	filter     data/parsed → data/filtered
//	classifier data/filtered → data/sentiment
//	correlator data/sentiment + data/market → data/analysis
func DefaultJobs() []JobConfig {
	return []JobConfig{
		defaultJob("sources", nil, []string{"data/raw"}),
		defaultJob("ingestor", []string{"data/raw"}, []string{"data/parsed"}),
		defaultJob("filter", []string{"data/parsed"}, []string{"data/filtered"}),
		defaultJob("classifier", []string{"data/filtered"}, []string{"data/sentiment"}),
		defaultJob("correlator", []string{"data/sentiment", "data/market"}, []string{"data/analysis"}),
	}
}

// DefaultInputs — артефакты, которые должны лежать в хранилище до run.
// Рыночные данные ICOLCAP загружает отдельный job icolcap.
func DefaultInputs() []string {
	return []string{"data/market"}
}

// DefaultExtraTemplates возвращает шаблоны, которые не входят в пайплайн,
// но доступны командам render и status.
func DefaultExtraTemplates() []JobConfig {
	icolcap := defaultJob("icolcap", nil, []string{"data/market"})
	icolcap.Env = []EnvVar{
		{Name: "START", Value: "2024-01-01"},
		{Name: "END", Value: "2025-01-01"},
	}
	return []JobConfig{icolcap}
}

func defaultJob(name string, requires, produces []string) JobConfig {
	return JobConfig{
		Name:     name,
		Image:    "mediacorr-" + name + ":" + DefaultImageTag,
		Command:  []string{"python", "-m", "app." + name},
		Requires: requires,
		Produces: produces,
	}
}
