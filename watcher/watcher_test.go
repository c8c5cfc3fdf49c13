package watcher_test

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zerbitx/gnockfs/cache"
	"github.com/zerbitx/gnockfs/route"
	"github.com/zerbitx/gnockfs/watcher"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type recorder struct {
	mu    sync.Mutex
	files map[string]int
}

func (r *recorder) Invalidate(file string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[file]++
}

func (r *recorder) seen(file string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[file] > 0
}

var _ = Describe("Watcher", func() {
	var (
		root    string
		deriver *route.Deriver
		rec     *recorder
		w       *watcher.Watcher
	)

	BeforeEach(func() {
		var err error
		root, err = os.MkdirTemp("", "gnockfs-watcher")
		Expect(err).ShouldNot(HaveOccurred())

		deriver, err = route.New(root)
		Expect(err).ShouldNot(HaveOccurred())

		rec = &recorder{files: map[string]int{}}
		w = watcher.New(deriver, rec, watcher.WithDebounce(10*time.Millisecond))
	})

	AfterEach(func() {
		w.Stop()
		Expect(os.RemoveAll(root)).To(Succeed())
	})

	Context("Starting", func() {
		It("Fails without a root directory", func() {
			d, err := route.New(filepath.Join(root, "missing"))
			Expect(err).ShouldNot(HaveOccurred())

			Expect(watcher.New(d, rec).Start()).ShouldNot(Succeed())
		})

		It("Ignores a second Start", func() {
			Expect(w.Start()).To(Succeed())
			Expect(w.Start()).To(Succeed())
		})
	})

	Context("Stopping", func() {
		It("Is safe before Start and when repeated", func() {
			w.Stop()
			Expect(w.Start()).To(Succeed())
			w.Stop()
			w.Stop()
		})
	})

	Context("Changes under the root", func() {
		BeforeEach(func() {
			Expect(w.Start()).To(Succeed())
		})

		It("Invalidates written fixtures", func() {
			file := filepath.Join(deriver.Root(), "hello.yml")
			Expect(os.WriteFile(file, []byte("body: x\n"), 0644)).To(Succeed())

			Eventually(func() bool { return rec.seen(file) }).Should(BeTrue())
		})

		It("Invalidates removed fixtures", func() {
			file := filepath.Join(deriver.Root(), "gone.yml")
			Expect(os.WriteFile(file, []byte("body: x\n"), 0644)).To(Succeed())
			Eventually(func() bool { return rec.seen(file) }).Should(BeTrue())

			rec.mu.Lock()
			rec.files = map[string]int{}
			rec.mu.Unlock()

			Expect(os.Remove(file)).To(Succeed())
			Eventually(func() bool { return rec.seen(file) }).Should(BeTrue())
		})

		It("Invalidates every fixture on any change", func() {
			untouched := filepath.Join(deriver.Root(), "untouched.yml")
			Expect(os.WriteFile(untouched, []byte("body: x\n"), 0644)).To(Succeed())

			Eventually(func() bool { return rec.seen(untouched) }).Should(BeTrue())

			rec.mu.Lock()
			rec.files = map[string]int{}
			rec.mu.Unlock()

			Expect(os.WriteFile(filepath.Join(deriver.Root(), "notes.txt"), []byte("x"), 0644)).To(Succeed())
			Eventually(func() bool { return rec.seen(untouched) }).Should(BeTrue())
		})

		It("Follows directories created after Start", func() {
			dir := filepath.Join(deriver.Root(), "v2", "nested")
			Expect(os.MkdirAll(dir, 0755)).To(Succeed())

			// let the watcher pick the new directories up
			time.Sleep(100 * time.Millisecond)

			file := filepath.Join(dir, "late.yml")
			Expect(os.WriteFile(file, []byte("body: x\n"), 0644)).To(Succeed())

			Eventually(func() bool { return rec.seen(file) }).Should(BeTrue())
		})
	})

	Context("With a real cache", func() {
		It("Drops the entry of an edited fixture", func() {
			counts := make(chan int, 16)
			c := cache.New()
			w = watcher.New(deriver, c,
				watcher.WithDebounce(10*time.Millisecond),
				watcher.OnInvalidate(func(n int) { counts <- n }),
			)

			file := filepath.Join(deriver.Root(), "cached.yml")
			Expect(os.WriteFile(file, []byte("body: one\n"), 0644)).To(Succeed())

			Expect(w.Start()).To(Succeed())

			_, err := c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.Contains(file)).To(BeTrue())

			Expect(os.WriteFile(file, []byte("body: two\n"), 0644)).To(Succeed())

			Eventually(counts, time.Second).Should(Receive(BeNumerically(">=", 1)))
			Eventually(func() bool { return c.Contains(file) }).Should(BeFalse())

			def, err := c.Get(file)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(string(def.Body)).To(Equal("two"))
		})
	})
})
