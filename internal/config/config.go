package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Name  string `yaml:"name" json:"name"` // application identifier, used in logs and traces
	Store Store  `yaml:"store" json:"store"`
}

type Store struct {
	// IdGeneratorNode seeds the snowflake node of the store; every store
	// instance of a deployment needs a distinct node id
	IdGeneratorNode int64 `yaml:"idGeneratorNode" json:"idGeneratorNode" env:"STORE_ID_GENERATOR_NODE"`
	// ComparatorCacheSize bounds the number of resolved order-by comparators kept around
	ComparatorCacheSize int `yaml:"comparatorCacheSize" json:"comparatorCacheSize" env:"STORE_COMPARATOR_CACHE_SIZE" env-default:"64"`
	// ComparatorCacheTTL evicts resolved comparators that were not used for this long
	ComparatorCacheTTL time.Duration `yaml:"comparatorCacheTTL" json:"comparatorCacheTTL" env:"STORE_COMPARATOR_CACHE_TTL" env-default:"1h"`
}

func (c Config) defaults() Config {
	if c.Name == "" {
		c.Name = "fluxbpm"
	}
	if c.Store.ComparatorCacheSize <= 0 {
		c.Store.ComparatorCacheSize = 64
	}
	return c
}

func InitConfig() Config {
	c := Config{}
	var fileName string
	confFile := os.Getenv("CONFIG_FILE")
	if confFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	} else {
		fileName = confFile
	}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c.defaults()
}
