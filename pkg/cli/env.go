package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. SPEECHIO_TOKEN.
const EnvPrefix = "SPEECHIO"

// Env holds environment overrides for the resolved context.
type Env struct {
	Context    string `envconfig:"CONTEXT"`
	AppID      string `envconfig:"APP_ID"`
	Token      string `envconfig:"TOKEN"`
	Secret     string `envconfig:"SECRET"`
	Cluster    string `envconfig:"CLUSTER"`
	ASRCluster string `envconfig:"ASR_CLUSTER"`
	WSURL      string `envconfig:"WS_URL"`
	Voice      string `envconfig:"VOICE"`
	CacheDir   string `envconfig:"CACHE_DIR"`
	S3Bucket   string `envconfig:"S3_BUCKET"`
}

// LoadEnv loads the given .env files (".env" when none are given) into the
// process environment, ignoring missing files, then reads SPEECHIO_*
// variables.
func LoadEnv(files ...string) (*Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &env, nil
}

// Apply overrides ctx with every non-empty field of env.
func (env *Env) Apply(ctx *Context) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&ctx.AppID, env.AppID)
	set(&ctx.Token, env.Token)
	set(&ctx.Secret, env.Secret)
	set(&ctx.Cluster, env.Cluster)
	set(&ctx.ASRCluster, env.ASRCluster)
	set(&ctx.WSURL, env.WSURL)
	set(&ctx.Voice, env.Voice)

	if env.CacheDir != "" || env.S3Bucket != "" {
		if ctx.Cache == nil {
			ctx.Cache = &CacheConfig{}
		}
		set(&ctx.Cache.Dir, env.CacheDir)
		if env.S3Bucket != "" {
			if ctx.Cache.S3 == nil {
				ctx.Cache.S3 = &S3Config{}
			}
			ctx.Cache.S3.Bucket = env.S3Bucket
		}
	}
}

// Resolve returns the context selected by name, SPEECHIO_CONTEXT or the
// current context, with env applied. When the config has no contexts at
// all the environment alone defines an unnamed context.
func (c *Config) Resolve(name string, env *Env) (*Context, error) {
	if name == "" {
		name = env.Context
	}
	var ctx Context
	if name != "" || len(c.Contexts) > 0 {
		found, err := c.ResolveContext(name)
		if err != nil {
			return nil, err
		}
		ctx = *found
		if found.Cache != nil {
			cache := *found.Cache
			if cache.S3 != nil {
				s3 := *cache.S3
				cache.S3 = &s3
			}
			ctx.Cache = &cache
		}
	}
	env.Apply(&ctx)
	return &ctx, nil
}
