package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	batchv1 "k8s.io/api/batch/v1"
)

// extensions — расширения, которые DirStore пробует для ссылки без расширения.
var extensions = []string{".yaml", ".yml", ".json"}

// DirStore читает манифесты из каталога, как `kubectl apply -f k8s/jobs/<name>.yaml`.
//
// Ссылка "filter-job" ищется как filter-job.yaml, filter-job.yml,
// filter-job.json. Ссылка с расширением или путём берётся как есть
// относительно каталога. Абсолютные ссылки и ссылки с ".." за пределы
// каталога отклоняются с ErrOutsideDir.
type DirStore struct {
	dir string
}

// NewDirStore создаёт DirStore для каталога.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir возвращает каталог манифестов.
func (s *DirStore) Dir() string {
	return s.dir
}

// Resolve читает и разбирает манифест.
func (s *DirStore) Resolve(_ context.Context, ref string) (*batchv1.Job, error) {
	path, err := s.locate(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	job, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return job, nil
}

// locate находит файл для ссылки.
func (s *DirStore) locate(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrNotFound)
	}
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, ref)
	}

	var candidates []string
	if filepath.Ext(ref) != "" {
		candidates = append(candidates, s.path(ref))
	} else {
		for _, ext := range extensions {
			candidates = append(candidates, s.path(ref+ext))
		}
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && !info.IsDir() {
			return c, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat manifest %s: %w", c, err)
		}
	}

	return "", fmt.Errorf("%w: %s in %s", ErrNotFound, ref, s.dir)
}

func (s *DirStore) path(ref string) string {
	return filepath.Join(s.dir, ref)
}

// Decode разбирает один YAML (или JSON) документ в batch/v1 Job.
//
// YAML переводится в JSON, чтобы сработали json-теги типов Kubernetes.
func Decode(data []byte) (*batchv1.Job, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidManifest)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: expected a single document", ErrInvalidManifest)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var job batchv1.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if job.APIVersion != "batch/v1" || job.Kind != "Job" {
		return nil, fmt.Errorf("%w: expected batch/v1 Job, got %s %s",
			ErrInvalidManifest, job.APIVersion, job.Kind)
	}
	if job.Name == "" {
		return nil, fmt.Errorf("%w: metadata.name is empty", ErrInvalidManifest)
	}
	if len(job.Spec.Template.Spec.Containers) == 0 {
		return nil, fmt.Errorf("%w: job %s has no containers", ErrInvalidManifest, job.Name)
	}

	return &job, nil
}

// Encode сериализует Job в YAML (для команды render).
func Encode(job *batchv1.Job) ([]byte, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	// status и пустой creationTimestamp не нужны в манифесте
	delete(doc, "status")
	if meta, ok := doc["metadata"].(map[string]any); ok {
		delete(meta, "creationTimestamp")
	}
	if spec, ok := doc["spec"].(map[string]any); ok {
		if tmpl, ok := spec["template"].(map[string]any); ok {
			if meta, ok := tmpl["metadata"].(map[string]any); ok {
				delete(meta, "creationTimestamp")
				if len(meta) == 0 {
					delete(tmpl, "metadata")
				}
			}
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}
