package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type configSuite struct{}

var _ = check.Suite(&configSuite{})

func (s *configSuite) TestParseRequiresOutputAndInputs(c *check.C) {
	var stderr bytes.Buffer
	_, code := Parse([]string{"-f", "20", "-k", "25"}, &stderr)
	c.Check(code, check.Equals, 2)
}

func (s *configSuite) TestParseValid(c *check.C) {
	var stderr bytes.Buffer
	cfg, code := Parse([]string{"-f", "20", "-k", "25", "-o", "out.bin", "seq.fasta"}, &stderr)
	c.Assert(code, check.Equals, -1)
	c.Check(cfg.K, check.Equals, 25)
	c.Check(cfg.Inputs, check.DeepEquals, []string{"seq.fasta"})
}

func (s *configSuite) TestValidateRejectsBadK(c *check.C) {
	cfg := Defaults()
	cfg.K = 0
	cfg.Threads = 1
	cfg.FilterBits = 20
	cfg.OutPath = "x"
	c.Assert(cfg.Validate(), check.NotNil)
}

func (s *configSuite) TestYAMLDefaultsAppliedWhenFlagNotSet(c *check.C) {
	f, err := ioutil.TempFile("", "cfg-*.yaml")
	c.Assert(err, check.IsNil)
	defer os.Remove(f.Name())
	_, err = f.WriteString("threads: 8\nfilterBits: 22\n")
	c.Assert(err, check.IsNil)
	c.Assert(f.Close(), check.IsNil)

	var stderr bytes.Buffer
	cfg, code := Parse([]string{"-config", f.Name(), "-k", "25", "-o", "out.bin", "seq.fasta"}, &stderr)
	c.Assert(code, check.Equals, -1)
	c.Check(cfg.Threads, check.Equals, 8)
	c.Check(cfg.FilterBits, check.Equals, uint(22))
}
