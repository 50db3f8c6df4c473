package handlers

import (
	"context"
	"net/http"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/services/registry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EntityCatalog lists registered entity types and loads their descriptors
type EntityCatalog interface {
	Names() []string
	Entity(ctx context.Context, name string) (*entities.EntityDescriptor, error)
}

type entitySummary struct {
	Name          string                       `json:"name"`
	Table         string                       `json:"table"`
	Relationships map[string]map[string]string `json:"relationships,omitempty"`
}

type entityDetail struct {
	Name       string                `json:"name"`
	Table      string                `json:"table"`
	PrimaryKey string                `json:"primary_key"`
	Fields     []*entities.FieldMeta `json:"fields"`
	Aliases    map[string][]string   `json:"aliases"`
}

// NewAdminRouter builds the admin HTTP surface:
//
//	GET /healthz
//	GET /metrics               prometheus exposition of gatherer
//	GET /v1/entities           registered entity types
//	GET /v1/entities/:name     loaded descriptor; ?alias=<name> narrows the alias index
//
// onScrape, when set, runs before every /metrics response.
func NewAdminRouter(catalog EntityCatalog, gatherer prometheus.Gatherer, onScrape func()) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if gatherer != nil {
		metricsHandler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
		r.GET("/metrics", func(c *gin.Context) {
			if onScrape != nil {
				onScrape()
			}
			metricsHandler.ServeHTTP(c.Writer, c.Request)
		})
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/entities", listEntitiesHandler(catalog))
		v1.GET("/entities/:name", entityHandler(catalog))
	}

	return r
}

func listEntitiesHandler(catalog EntityCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := catalog.Names()
		out := make([]entitySummary, 0, len(names))
		for _, name := range names {
			desc, err := catalog.Entity(c.Request.Context(), name)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "entity": name})
				return
			}

			summary := entitySummary{Name: desc.Name, Table: desc.TableName}
			for _, rel := range desc.AllRelations() {
				if summary.Relationships == nil {
					summary.Relationships = make(map[string]map[string]string)
				}
				kind := string(rel.Kind)
				if summary.Relationships[kind] == nil {
					summary.Relationships[kind] = make(map[string]string)
				}
				summary.Relationships[kind][rel.Alias] = rel.Spec.TargetEntity
			}
			out = append(out, summary)
		}
		c.JSON(http.StatusOK, out)
	}
}

func entityHandler(catalog EntityCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		desc, err := catalog.Entity(c.Request.Context(), c.Param("name"))
		if err != nil {
			code := http.StatusInternalServerError
			if entities.IsUnknownEntityType(err) {
				code = http.StatusNotFound
			}
			c.JSON(code, gin.H{"error": err.Error()})
			return
		}

		var aliasArgs []string
		if alias, ok := c.GetQuery("alias"); ok {
			aliasArgs = append(aliasArgs, alias)
		}
		aliases, err := registry.FindAlias(desc, aliasArgs...)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, entityDetail{
			Name:       desc.Name,
			Table:      desc.TableName,
			PrimaryKey: desc.PrimaryKey,
			Fields:     desc.Fields,
			Aliases:    aliases,
		})
	}
}
