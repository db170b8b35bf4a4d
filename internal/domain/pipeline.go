package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobDef — описание одного batch job в пайплайне.
//
// JobDef неизменяем после загрузки конфигурации. Manifest — непрозрачная
// ссылка, которую разрешает backend (имя файла в каталоге манифестов или
// имя встроенного шаблона).
type JobDef struct {
	// Name — имя шага пайплайна ("sources", "ingestor", ...).
	Name string `json:"name"`

	// Manifest — ссылка на манифест. Пусто → "<name>-job".
	Manifest string `json:"manifest,omitempty"`

	// Timeout — сколько ждать терминального условия.
	// 0 → таймаут runner'а по умолчанию.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Requires — артефакты общего хранилища, которые job читает.
	// Каждый должен быть произведён одним из предыдущих jobs.
	Requires []string `json:"requires,omitempty"`

	// Produces — артефакты, которые job записывает в общее хранилище.
	Produces []string `json:"produces,omitempty"`
}

// ManifestRef возвращает ссылку на манифест с учётом значения по умолчанию.
func (j JobDef) ManifestRef() string {
	if j.Manifest != "" {
		return j.Manifest
	}
	return j.Name + "-job"
}

// Pipeline — упорядоченная последовательность jobs.
//
// Порядок значим: каждый job рассчитывает на результаты предыдущих
// через общее хранилище (PVC). Контракт requires/produces делает эту
// зависимость явной.
type Pipeline struct {
	// Name — имя пайплайна (для логов и истории).
	Name string `json:"name"`

	// Namespace — namespace, куда отправляются все jobs.
	Namespace string `json:"namespace"`

	// Inputs — артефакты, существующие до старта run.
	Inputs []string `json:"inputs,omitempty"`

	// Jobs — шаги в порядке выполнения.
	Jobs []JobDef `json:"jobs"`
}

// Names возвращает имена jobs в порядке выполнения.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.Jobs))
	for i, j := range p.Jobs {
		names[i] = j.Name
	}
	return names
}

// Index возвращает позицию job по имени или -1.
func (p *Pipeline) Index(name string) int {
	for i, j := range p.Jobs {
		if j.Name == name {
			return i
		}
	}
	return -1
}

// Slice возвращает непрерывный подпайплайн от from до to включительно.
// Пустые from/to означают начало/конец пайплайна.
//
// Артефакты, которые производят пропущенные jobs, переносятся в Inputs:
// они считаются уже лежащими в хранилище после прошлых запусков.
func (p *Pipeline) Slice(from, to string) (*Pipeline, error) {
	if len(p.Jobs) == 0 && from == "" && to == "" {
		return &Pipeline{
			Name:      p.Name,
			Namespace: p.Namespace,
			Inputs:    append([]string(nil), p.Inputs...),
		}, nil
	}

	start, end := 0, len(p.Jobs)-1
	if from != "" {
		start = p.Index(from)
		if start < 0 {
			return nil, fmt.Errorf("unknown job %q", from)
		}
	}
	if to != "" {
		end = p.Index(to)
		if end < 0 {
			return nil, fmt.Errorf("unknown job %q", to)
		}
	}
	if start > end {
		return nil, fmt.Errorf("job %q comes after %q", from, to)
	}

	inputs := append([]string(nil), p.Inputs...)
	for _, j := range p.Jobs[:start] {
		inputs = append(inputs, j.Produces...)
	}

	return &Pipeline{
		Name:      p.Name,
		Namespace: p.Namespace,
		Inputs:    inputs,
		Jobs:      append([]JobDef(nil), p.Jobs[start:end+1]...),
	}, nil
}

// JobRef — идентификатор ресурса job в backend.
type JobRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// String возвращает "namespace/name".
func (r JobRef) String() string {
	return r.Namespace + "/" + r.Name
}

// Submission — запрос на отправку одного job в backend.
type Submission struct {
	// RunID — run, в рамках которого отправляется job.
	RunID uuid.UUID

	// Pipeline — имя пайплайна.
	Pipeline string

	// Namespace — целевой namespace.
	Namespace string

	// Job — описание job.
	Job JobDef
}
