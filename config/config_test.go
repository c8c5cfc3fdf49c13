package config_test

import (
	"os"

	"github.com/zerbitx/gnockfs/config"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Env", func() {
	vars := []string{"HOST", "PORT", "GNOCK_FIXTURES", "GNOCK_BASE_PATH", "GNOCK_WATCH", "LOG_LEVEL"}
	saved := map[string]*string{}

	BeforeEach(func() {
		for _, name := range vars {
			if v, ok := os.LookupEnv(name); ok {
				v := v
				saved[name] = &v
			} else {
				saved[name] = nil
			}
			Expect(os.Unsetenv(name)).To(Succeed())
		}
	})

	AfterEach(func() {
		for name, v := range saved {
			if v == nil {
				Expect(os.Unsetenv(name)).To(Succeed())
				continue
			}
			Expect(os.Setenv(name, *v)).To(Succeed())
		}
	})

	It("Has defaults", func() {
		cfg := config.New()

		Expect(*cfg).To(Equal(config.Env{
			Host:           "127.0.0.1",
			Port:           8080,
			FixtureRoot:    ".",
			ConfigBasePath: "/gnockconfig",
			Watch:          true,
			LogLevel:       "info",
		}))
	})

	It("Reads the environment", func() {
		Expect(os.Setenv("PORT", "9090")).To(Succeed())
		Expect(os.Setenv("GNOCK_FIXTURES", "/srv/fixtures")).To(Succeed())
		Expect(os.Setenv("GNOCK_WATCH", "false")).To(Succeed())
		Expect(os.Setenv("LOG_LEVEL", "debug")).To(Succeed())

		cfg, err := config.Load()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(cfg.Port).To(Equal(9090))
		Expect(cfg.FixtureRoot).To(Equal("/srv/fixtures"))
		Expect(cfg.Watch).To(BeFalse())
		Expect(cfg.LogLevel).To(Equal("debug"))
	})

	It("Reports values it can't parse", func() {
		Expect(os.Setenv("PORT", "eighty")).To(Succeed())

		_, err := config.Load()
		Expect(err).Should(HaveOccurred())
		Expect(func() { config.New() }).To(Panic())
	})
})
