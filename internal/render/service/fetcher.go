package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/shared/logging"
)

type resultFetcher struct {
	source core.ArtifactSource
	store  core.ArtifactStore
	logger logging.Logger
}

func NewResultFetcher(source core.ArtifactSource, store core.ArtifactStore, logger logging.Logger) core.ResultFetcher {
	return &resultFetcher{
		source: source,
		store:  store,
		logger: logger,
	}
}

// Fetch downloads the descriptors in order and stores each one as {name}.{extension}.
// The first failure aborts the fetch; artifacts stored before it are kept.
func (f *resultFetcher) Fetch(
	ctx context.Context,
	descriptors []core.ResultDescriptor,
	cred core.Credential,
	extension string,
) ([]core.Artifact, error) {
	artifacts := make([]core.Artifact, 0, len(descriptors))
	seen := make(map[string]struct{}, len(descriptors))

	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}

		name := artifactName(d.Name, extension)
		if _, dup := seen[name]; dup {
			f.logger.Warn("Artifact name collision, overwriting", "name", name, "url", d.URL)
		}
		seen[name] = struct{}{}

		artifact, err := f.fetchOne(ctx, d, cred, name)
		if err != nil {
			return artifacts, &core.FetchError{Name: name, URL: d.URL, Err: err}
		}

		f.logger.Info("Artifact stored",
			"name", artifact.Name,
			"location", artifact.Location,
			"bytes", artifact.Size,
		)
		artifacts = append(artifacts, artifact)
	}

	return artifacts, nil
}

func (f *resultFetcher) fetchOne(
	ctx context.Context,
	d core.ResultDescriptor,
	cred core.Credential,
	name string,
) (core.Artifact, error) {
	body, err := f.source.Open(ctx, d.URL, cred)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("download: %w", err)
	}
	defer body.Close()

	artifact, err := f.store.Put(ctx, name, body)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("store: %w", err)
	}
	return artifact, nil
}

func artifactName(name, extension string) string {
	extension = strings.TrimPrefix(extension, ".")
	if extension == "" {
		return name
	}
	return name + "." + extension
}
