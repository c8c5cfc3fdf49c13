package cache_test

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zerbitx/gnockfs/cache"
	"github.com/zerbitx/gnockfs/spec"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cache", func() {
	var (
		dir    string
		file   string
		parses int32
		c      *cache.Cache
	)

	write := func(contents string) {
		Expect(os.WriteFile(file, []byte(contents), 0644)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "gnockfs-cache")
		Expect(err).ShouldNot(HaveOccurred())

		file = filepath.Join(dir, "hello.yml")
		atomic.StoreInt32(&parses, 0)

		c = cache.New(cache.WithParser(func(b []byte) (*spec.RouteDefinition, error) {
			atomic.AddInt32(&parses, 1)
			return spec.Parse(b)
		}))
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Context("A file that was never written", func() {
		It("Returns nothing without an error", func() {
			def, err := c.Get(file)

			Expect(err).ShouldNot(HaveOccurred())
			Expect(def).To(BeNil())
			Expect(c.Len()).To(BeZero())
		})
	})

	Context("An unchanged file", func() {
		It("Is parsed once", func() {
			write("status: 200\nbody: original\n")

			for i := 0; i < 3; i++ {
				def, err := c.Get(file)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(string(def.Body)).To(Equal("original"))
			}

			Expect(atomic.LoadInt32(&parses)).To(BeEquivalentTo(1))
			Expect(c.Contains(file)).To(BeTrue())
		})

		It("Shares one entry between equivalent paths", func() {
			write("body: x\n")

			_, err := c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			_, err = c.Get(filepath.Join(dir, ".", "sub", "..", "hello.yml"))
			Expect(err).ShouldNot(HaveOccurred())

			Expect(atomic.LoadInt32(&parses)).To(BeEquivalentTo(1))
			Expect(c.Len()).To(Equal(1))
		})
	})

	Context("An edited file", func() {
		It("Is reparsed once its contents change", func() {
			write("status: 200\nbody:\n  {\"message\":\"original\"}\n")

			def, err := c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(def.Status).To(Equal(200))
			Expect(string(def.Body)).To(Equal(`{"message":"original"}`))

			write("status: 201\nbody:\n  {\"message\":\"updated\"}\n")

			def, err = c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(def.Status).To(Equal(201))
			Expect(string(def.Body)).To(Equal(`{"message":"updated"}`))
			Expect(atomic.LoadInt32(&parses)).To(BeEquivalentTo(2))
		})

		It("Is reparsed when only the modification time changes", func() {
			write("body: same\n")

			_, err := c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())

			later := time.Now().Add(time.Hour)
			Expect(os.Chtimes(file, later, later)).To(Succeed())

			_, err = c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(atomic.LoadInt32(&parses)).To(BeEquivalentTo(2))
		})
	})

	Context("A broken edit", func() {
		It("Fails the request but keeps the last good entry", func() {
			write("body: good\n")
			info, err := os.Stat(file)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())

			write("status: 9000\nbody: bad\n")

			def, err := c.Get(file)
			Expect(def).To(BeNil())
			Expect(spec.IsKind(err, spec.InvalidStatus)).To(BeTrue())
			Expect(c.Contains(file)).To(BeTrue())

			// restoring the exact previous state hits the surviving entry
			write("body: good\n")
			Expect(os.Chtimes(file, info.ModTime(), info.ModTime())).To(Succeed())

			def, err = c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(string(def.Body)).To(Equal("good"))
			Expect(atomic.LoadInt32(&parses)).To(BeEquivalentTo(2))
		})
	})

	Context("A deleted file", func() {
		It("Drops the entry", func() {
			write("body: gone soon\n")

			_, err := c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.Contains(file)).To(BeTrue())

			Expect(os.Remove(file)).To(Succeed())

			def, err := c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(def).To(BeNil())
			Expect(c.Contains(file)).To(BeFalse())
		})
	})

	Context("Invalidation", func() {
		It("Forces the next Get to parse", func() {
			write("body: x\n")

			_, err := c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())

			c.Invalidate(file)
			Expect(c.Contains(file)).To(BeFalse())

			_, err = c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(atomic.LoadInt32(&parses)).To(BeEquivalentTo(2))
		})

		It("Is a no-op for unknown files", func() {
			c.Invalidate(filepath.Join(dir, "never.yml"))
			c.Invalidate(filepath.Join(dir, "never.yml"))

			Expect(c.Len()).To(BeZero())
		})

		It("Clears everything", func() {
			for _, name := range []string{"a.yml", "b.yml"} {
				f := filepath.Join(dir, name)
				Expect(os.WriteFile(f, []byte("body: x\n"), 0644)).To(Succeed())
				_, err := c.Get(f)
				Expect(err).ShouldNot(HaveOccurred())
			}

			Expect(c.Clear()).To(Equal(2))
			Expect(c.Len()).To(BeZero())
			Expect(c.Clear()).To(BeZero())
		})
	})

	Context("Concurrent readers", func() {
		It("Always see a complete definition", func() {
			write("status: 202\nbody: steady\n")

			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					def, err := c.Get(file)
					Expect(err).ShouldNot(HaveOccurred())
					Expect(def.Status).To(Equal(202))
					Expect(string(def.Body)).To(Equal("steady"))
				}()
			}
			wg.Wait()

			Expect(c.Len()).To(Equal(1))
		})
	})
})
