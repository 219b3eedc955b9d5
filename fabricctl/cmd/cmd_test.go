package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/axifabric/driver"
	"github.com/sarchlab/axifabric/fabric"
	"github.com/sarchlab/axifabric/fabric/adapter"
)

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}

	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)

	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func flatten(err error) []error {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}

	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, flatten(e)...)
	}

	return out
}

var _ = Describe("fabricctl", func() {
	var (
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	)

	run := func(args ...string) error {
		rootCmd.SetArgs(args)
		return rootCmd.Execute()
	}

	writeFile := func(content string) string {
		path := filepath.Join(GinkgoT().TempDir(), "fabric.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		return path
	}

	BeforeEach(func() {
		resetFlags(rootCmd)

		stdout = new(bytes.Buffer)
		stderr = new(bytes.Buffer)
		rootCmd.SetOut(stdout)
		rootCmd.SetErr(stderr)
	})

	It("should list the presets", func() {
		Expect(run("presets")).To(Succeed())

		Expect(stdout.String()).To(ContainSubstring("axi2axi-lite"))
		Expect(stdout.String()).To(ContainSubstring("AXI to AXI-Lite test SoC"))
	})

	It("should require a declaration", func() {
		err := run("check")

		Expect(err).To(MatchError(errNoSource))
	})

	It("should check a preset", func() {
		Expect(run("check", "--preset", "axi")).To(Succeed())

		Expect(stdout.String()).To(ContainSubstring("ok"))
	})

	It("should log each step when verbose", func() {
		Expect(run("check", "--preset", "axi2axi-lite", "-v")).To(Succeed())

		Expect(stderr.String()).To(ContainSubstring("EndpointAdded"))
	})

	It("should report every problem of a file", func() {
		path := writeFile(`
endpoints:
  - {name: cpu, role: master, protocol: axi, connects: ["*"]}
  - {name: a, role: slave, protocol: axi, region: {base: 0x1000, size: 0x1000}}
  - {name: b, role: slave, protocol: axi, region: {base: 0x1800, size: 0x1000}}
  - {name: c, role: slave, protocol: axi, data_width: 12,
     region: {base: 0x4000, size: 0x1000}}
`)

		err := run("check", "--file", path)

		var overlaps []string
		var invalid []string
		for _, e := range flatten(err) {
			var overlap *fabric.OverlapError
			if errors.As(e, &overlap) {
				overlaps = append(overlaps, overlap.Requested.Name)
			}

			var verr *fabric.ValidationError
			if errors.As(e, &verr) {
				invalid = append(invalid, verr.Endpoint)
			}
		}

		Expect(overlaps).To(Equal([]string{"b"}))
		Expect(invalid).To(ContainElement("c"))
		Expect(invalid).ToNot(ContainElement("b"))
	})

	It("should report unsupported conversions", func() {
		path := writeFile(`
endpoints:
  - {name: cpu, role: master, protocol: axi, id_width: 8, connects: ["*"]}
  - {name: ram, role: slave, protocol: axi, id_width: 2,
     region: {base: 0x1000, size: 0x1000}}
`)

		err := run("check", "--file", path)

		var unsupported *adapter.UnsupportedConversionError
		Expect(errors.As(err, &unsupported)).To(BeTrue())
	})

	It("should print plans and write a manifest", func() {
		manifest := filepath.Join(GinkgoT().TempDir(), "manifest.yaml")

		Expect(run("plan", "--preset", "axi2axi-lite",
			"--manifest", manifest)).To(Succeed())

		Expect(stdout.String()).To(ContainSubstring(
			"dma -> axil_ram: protocol axi->axi-lite (32b)"))

		data, err := os.ReadFile(manifest)
		Expect(err).ToNot(HaveOccurred())

		var m driver.Manifest
		Expect(yaml.Unmarshal(data, &m)).To(Succeed())
		Expect(m.Regions).To(HaveLen(4))
	})

	It("should write the manifest of the slaves that resolve", func() {
		path := writeFile(`
endpoints:
  - {name: cpu, role: master, protocol: axi-lite, connects: ["*"]}
  - {name: ram, role: slave, protocol: axi-lite,
     region: {base: 0x1000, size: 0x1000}}
  - {name: fifo_ram, role: slave, protocol: axi-lite, buffer: fifo,
     region: {base: 0x2000, size: 0x1000}}
`)
		manifest := filepath.Join(GinkgoT().TempDir(), "manifest.yaml")

		err := run("plan", "--file", path, "--manifest", manifest)

		var unsupported *adapter.UnsupportedConversionError
		Expect(errors.As(err, &unsupported)).To(BeTrue())
		Expect(stdout.String()).To(ContainSubstring("cpu -> fifo_ram: unsupported"))

		data, err := os.ReadFile(manifest)
		Expect(err).ToNot(HaveOccurred())

		var m driver.Manifest
		Expect(yaml.Unmarshal(data, &m)).To(Succeed())
		Expect(m.Blocked).To(Equal([]string{"fifo_ram"}))
		Expect(m.Links).To(HaveLen(1))
	})

	It("should leave no manifest when the file is invalid", func() {
		path := writeFile(`
endpoints:
  - {name: cpu, role: master, protocol: axi-lite, connects: ["*"]}
  - {name: a, role: slave, protocol: axi-lite, region: {base: 0x1000, size: 0x1000}}
  - {name: b, role: slave, protocol: axi-lite, region: {base: 0x1000, size: 0x1000}}
`)
		manifest := filepath.Join(GinkgoT().TempDir(), "manifest.yaml")

		err := run("plan", "--file", path, "--manifest", manifest)

		Expect(err).To(HaveOccurred())
		Expect(manifest).ToNot(BeAnExistingFile())
	})

	It("should record plans", func() {
		path := filepath.Join(GinkgoT().TempDir(), "plan")

		Expect(run("plan", "--preset", "axi-lite",
			"--record-path", path)).To(Succeed())

		Expect(path + ".sqlite3").To(BeAnExistingFile())
	})

	It("should print the memory map", func() {
		Expect(run("map", "--preset", "axi2axi-lite")).To(Succeed())

		lines := bytes.Split(bytes.TrimSpace(stdout.Bytes()), []byte("\n"))
		Expect(lines).To(HaveLen(4))
		Expect(string(lines[0])).To(HavePrefix("rom"))
		Expect(string(lines[1])).To(ContainSubstring("0x00010000 0x00001000"))
	})

	It("should decode an address", func() {
		Expect(run("decode", "--preset", "axi2axi-lite", "0x10000004")).
			To(Succeed())

		Expect(stdout.String()).To(ContainSubstring("sram@"))
		Expect(stdout.String()).To(ContainSubstring("+0x4"))
	})

	It("should decode through a crossbar", func() {
		Expect(run("decode", "--preset", "axi-lite", "0x101004")).To(Succeed())

		Expect(stdout.String()).To(Equal("axil_ram_xbar@[0x100000, 0x110000) " +
			"+0x1004 > axil_ram_xbar.ram1@[0x101000, 0x102000) +0x4\n"))
	})

	It("should refuse addresses between crossbar ports", func() {
		err := run("decode", "--preset", "axi-lite", "0x108000")

		Expect(err).To(MatchError(
			"address 0x108000 falls in no port of axil_ram_xbar"))
	})

	It("should print port windows under their slave", func() {
		Expect(run("map", "--preset", "axi-lite")).To(Succeed())

		Expect(stdout.String()).To(ContainSubstring(
			"  axil_ram_xbar.ram1 0x00101000 0x00001000\n"))
		Expect(stdout.String()).To(ContainSubstring("axil_ram_int"))
	})

	It("should refuse unmapped addresses", func() {
		err := run("decode", "--preset", "axi2axi-lite", "0x80000000")

		Expect(err).To(MatchError(ContainSubstring("not mapped")))
	})

	It("should take the address width from the flag", func() {
		path := writeFile(`
endpoints:
  - {name: cpu, role: master, protocol: axi-lite, connects: ["*"]}
  - {name: ram, role: slave, protocol: axi-lite,
     region: {base: 0x10000, size: 0x1000}}
`)

		err := run("map", "--file", path, "--address-width", "16")

		Expect(cfg.AddressWidth).To(Equal(uint32(16)))
		Expect(err).To(MatchError(ContainSubstring("exceeds the address space")))
	})
})
