package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	corev1 "k8s.io/api/core/v1"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/manifest"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "MEDIACORR"

// Config — конфигурация runner'а.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Kube      KubeConfig      `mapstructure:"kube"`
	Manifests ManifestsConfig `mapstructure:"manifests"`
	Jobs      []JobConfig     `mapstructure:"jobs"`
	Templates []JobConfig     `mapstructure:"templates"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Serve     ServeConfig     `mapstructure:"serve"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`

	// File — прочитанный файл конфигурации (пусто, если не найден).
	File string `mapstructure:"-"`
}

// PipelineConfig — параметры пайплайна.
type PipelineConfig struct {
	Name      string        `mapstructure:"name"`
	Namespace string        `mapstructure:"namespace"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Inputs    []string      `mapstructure:"inputs"`
}

// KubeConfig — подключение к кластеру.
type KubeConfig struct {
	// Kubeconfig — путь к kubeconfig. Пусто → in-cluster, затем ~/.kube/config.
	Kubeconfig     string        `mapstructure:"kubeconfig"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	OnConflict     string        `mapstructure:"on_conflict"`
	ReplaceTimeout time.Duration `mapstructure:"replace_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ManifestsConfig — откуда берутся манифесты jobs.
type ManifestsConfig struct {
	// Dir — каталог YAML манифестов. Файл из каталога важнее шаблона.
	Dir string `mapstructure:"dir"`

	ClaimName  string `mapstructure:"claim_name"`
	VolumeName string `mapstructure:"volume_name"`
	MountPath  string `mapstructure:"mount_path"`
}

// JobConfig — job пайплайна и, если задан образ, его шаблон.
type JobConfig struct {
	Name     string        `mapstructure:"name"`
	Manifest string        `mapstructure:"manifest"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Requires []string      `mapstructure:"requires"`
	Produces []string      `mapstructure:"produces"`

	Image           string   `mapstructure:"image"`
	ImagePullPolicy string   `mapstructure:"image_pull_policy"`
	Command         []string `mapstructure:"command"`
	Args            []string `mapstructure:"args"`
	Env             []EnvVar `mapstructure:"env"`
	BackoffLimit    *int32   `mapstructure:"backoff_limit"`
	Completions     *int32   `mapstructure:"completions"`
	Parallelism     *int32   `mapstructure:"parallelism"`
	Indexed         bool     `mapstructure:"indexed"`
	TTLAfterFinish  *int32   `mapstructure:"ttl_seconds_after_finished"`
	ServiceAccount  string   `mapstructure:"service_account"`
}

// EnvVar — переменная окружения контейнера. Список, а не карта:
// viper приводит ключи карт к нижнему регистру.
type EnvVar struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// ScheduleConfig — cron-расписание режима serve.
type ScheduleConfig struct {
	// Cron — выражение cron (5 полей или дескриптор @daily). Пусто → выключено.
	Cron string `mapstructure:"cron"`
}

// ServeConfig — HTTP endpoint режима serve.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig — история runs в PostgreSQL. Пустой URL → выключено.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RabbitMQConfig — события runs и запросы на запуск. Пустой URL → выключено.
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

// Load читает конфигурацию.
//
// path == "" → поиск mediacorr.yaml в стандартных каталогах; отсутствие
// файла не ошибка.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mediacorr")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(".", "config"))
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mediacorr"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Короткие имена и общие с другими сервисами переменные.
	_ = v.BindEnv("pipeline.namespace", EnvPrefix+"_PIPELINE_NAMESPACE", EnvPrefix+"_NAMESPACE")
	_ = v.BindEnv("pipeline.timeout", EnvPrefix+"_PIPELINE_TIMEOUT", EnvPrefix+"_TIMEOUT")
	_ = v.BindEnv("kube.kubeconfig", EnvPrefix+"_KUBE_KUBECONFIG", "KUBECONFIG")
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DB_URL")
	_ = v.BindEnv("rabbitmq.url", EnvPrefix+"_RABBITMQ_URL", "RABBITMQ_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if len(cfg.Jobs) == 0 {
		cfg.Jobs = DefaultJobs()
		if !v.IsSet("pipeline.inputs") {
			cfg.Pipeline.Inputs = DefaultInputs()
		}
	}
	if !v.IsSet("templates") {
		cfg.Templates = DefaultExtraTemplates()
	}

	if cfg.File != "" {
		cfg.resolvePaths(filepath.Dir(cfg.File))
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", DefaultPipelineName)
	v.SetDefault("pipeline.namespace", DefaultNamespace)
	v.SetDefault("pipeline.timeout", DefaultTimeout)

	v.SetDefault("kube.kubeconfig", "")
	v.SetDefault("kube.poll_interval", DefaultPollInterval)
	v.SetDefault("kube.on_conflict", "replace")
	v.SetDefault("kube.replace_timeout", DefaultReplaceTimeout)
	v.SetDefault("kube.request_timeout", DefaultRequestTimeout)

	v.SetDefault("manifests.dir", "")
	v.SetDefault("manifests.claim_name", manifest.DefaultClaimName)
	v.SetDefault("manifests.volume_name", manifest.DefaultVolumeName)
	v.SetDefault("manifests.mount_path", manifest.DefaultMountPath)

	v.SetDefault("schedule.cron", "")
	v.SetDefault("serve.addr", DefaultServeAddr)
	v.SetDefault("database.url", "")
	v.SetDefault("rabbitmq.url", "")
}

// resolvePaths делает относительный каталог манифестов относительным
// к файлу конфигурации.
func (c *Config) resolvePaths(base string) {
	if c.Manifests.Dir != "" && !filepath.IsAbs(c.Manifests.Dir) {
		c.Manifests.Dir = filepath.Join(base, c.Manifests.Dir)
	}
}

// BuildPipeline строит пайплайн из конфигурации.
func (c *Config) BuildPipeline() *domain.Pipeline {
	p := &domain.Pipeline{
		Name:      c.Pipeline.Name,
		Namespace: c.Pipeline.Namespace,
		Inputs:    append([]string(nil), c.Pipeline.Inputs...),
		Jobs:      make([]domain.JobDef, len(c.Jobs)),
	}
	for i, j := range c.Jobs {
		p.Jobs[i] = domain.JobDef{
			Name:     j.Name,
			Manifest: j.Manifest,
			Timeout:  j.Timeout,
			Requires: append([]string(nil), j.Requires...),
			Produces: append([]string(nil), j.Produces...),
		}
	}
	return p
}

// Store строит хранилище манифестов: каталог (если задан), затем
// шаблоны jobs и дополнительных шаблонов, у которых указан образ.
func (c *Config) Store() manifest.Store {
	templates := make(map[string]manifest.Template)
	for _, list := range [][]JobConfig{c.Templates, c.Jobs} {
		for _, j := range list {
			if j.Image == "" {
				continue
			}
			ref := domain.JobDef{Name: j.Name, Manifest: j.Manifest}.ManifestRef()
			templates[ref] = j.Template()
		}
	}

	tmplStore := manifest.NewTemplateStore(manifest.Storage{
		ClaimName:  c.Manifests.ClaimName,
		VolumeName: c.Manifests.VolumeName,
		MountPath:  c.Manifests.MountPath,
	}, templates)

	if c.Manifests.Dir == "" {
		return tmplStore
	}
	return manifest.Chain{manifest.NewDirStore(c.Manifests.Dir), tmplStore}
}

// Template возвращает шаблон манифеста job. Имя ресурса — "<name>-job".
func (j JobConfig) Template() manifest.Template {
	return manifest.Template{
		Name:                    j.Name + "-job",
		Image:                   j.Image,
		ImagePullPolicy:         corev1.PullPolicy(j.ImagePullPolicy),
		Command:                 j.Command,
		Args:                    j.Args,
		Env:                     j.envMap(),
		BackoffLimit:            j.BackoffLimit,
		Completions:             j.Completions,
		Parallelism:             j.Parallelism,
		Indexed:                 j.Indexed,
		TTLSecondsAfterFinished: j.TTLAfterFinish,
		ServiceAccountName:      j.ServiceAccount,
	}
}

func (j JobConfig) envMap() map[string]string {
	if len(j.Env) == 0 {
		return nil
	}
	env := make(map[string]string, len(j.Env))
	for _, e := range j.Env {
		env[e.Name] = e.Value
	}
	return env
}
