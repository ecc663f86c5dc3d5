package extract

import (
	"context"

	"github.com/d-j-hatton/python-smartem/join"
	"github.com/d-j-hatton/python-smartem/schema"
)

// GetExposureKeys lists the distinct ExposureInfo keys of a project.
func (a *DataAPI) GetExposureKeys(ctx context.Context, project string) ([]string, error) {
	return a.distinct(ctx, "get_exposure_keys", schema.ExposureInfo, "key", project)
}

// GetParticleKeys lists the distinct ParticleInfo keys of a project.
func (a *DataAPI) GetParticleKeys(ctx context.Context, project string) ([]string, error) {
	return a.distinct(ctx, "get_particle_keys", schema.ParticleInfo, "key", project)
}

// GetParticleInfoSources lists the distinct ParticleInfo sources of a project.
func (a *DataAPI) GetParticleInfoSources(ctx context.Context, project string) ([]string, error) {
	return a.distinct(ctx, "get_particle_info_sources", schema.ParticleInfo, "source", project)
}

// GetParticleSetKeys lists the distinct ParticleSetInfo keys of a project.
func (a *DataAPI) GetParticleSetKeys(ctx context.Context, project string) ([]string, error) {
	q, err := a.compose(schema.ParticleSetInfo, schema.ParticleSet, join.WithParentAnchor(project))
	if err != nil {
		return nil, err
	}
	return a.selectDistinct(ctx, "get_particle_set_keys", q, schema.ParticleSetInfo, "key")
}

// GetParticleSetGroupNames lists the distinct particle set groups of a project.
func (a *DataAPI) GetParticleSetGroupNames(ctx context.Context, project string) ([]string, error) {
	q, err := join.Compose(a.graph, []schema.Entity{schema.ParticleSet}, join.WithParentAnchor(project))
	if err != nil {
		return nil, err
	}
	return a.selectDistinct(ctx, "get_particle_set_group_names", q, schema.ParticleSet, "group_name")
}

// distinct walks an imaging info table up to the project and lists one column.
func (a *DataAPI) distinct(ctx context.Context, op string, e schema.Entity, column, project string) ([]string, error) {
	q, err := a.scoped(e, Scope{Project: project})
	if err != nil {
		return nil, err
	}
	return a.selectDistinct(ctx, op, q, e, column)
}

func (a *DataAPI) selectDistinct(ctx context.Context, op string, q *join.Query, e schema.Entity, column string) ([]string, error) {
	q.Select(e, column).Distinct().OrderBy(e, column)
	values, err := a.strings(ctx, op, q)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
