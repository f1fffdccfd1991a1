package provision_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/provision"
)

var _ = Describe("Provision", func() {
	var dir string

	writeScript := func(name, body string, mode os.FileMode) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), mode)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		provision.Teardown()
		DeferCleanup(provision.Teardown)
	})

	It("is not provisioned before Init", func() {
		_, err := provision.Current()
		Expect(err).To(MatchError(errors.ErrNotProvisioned))
	})

	It("captures the version the client prints on stderr", func() {
		exe := writeScript("fakessh", `echo "FakeSSH_9.6p1, FakeSSL 3.0" >&2`, 0o755)

		got, err := provision.Init(context.TODO(), provision.Config{ExecutablePath: exe, RequiredVersion: "FakeSSH_9"})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Path).To(Equal(exe))
		Expect(got.Version).To(Equal("FakeSSH_9.6p1, FakeSSL 3.0"))

		cur, err := provision.Current()
		Expect(err).NotTo(HaveOccurred())
		Expect(cur).To(Equal(got))
	})

	It("provisions only once until torn down", func() {
		first := writeScript("first", `echo first >&2`, 0o755)
		second := writeScript("second", `echo second >&2`, 0o755)

		a, err := provision.Init(context.TODO(), provision.Config{ExecutablePath: first})
		Expect(err).NotTo(HaveOccurred())
		b, err := provision.Init(context.TODO(), provision.Config{ExecutablePath: second})
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(BeIdenticalTo(a))

		provision.Teardown()
		_, err = provision.Current()
		Expect(err).To(MatchError(errors.ErrNotProvisioned))

		c, err := provision.Init(context.TODO(), provision.Config{ExecutablePath: second})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Version).To(Equal("second"))
	})

	It("rejects a version mismatch", func() {
		exe := writeScript("oldssh", `echo "OpenSSH_7.4" >&2`, 0o755)
		_, err := provision.Init(context.TODO(), provision.Config{ExecutablePath: exe, RequiredVersion: "OpenSSH_9"})
		Expect(err).To(MatchError(errors.ErrExecutableVersion))

		_, err = provision.Current()
		Expect(err).To(MatchError(errors.ErrNotProvisioned))
	})

	It("rejects a client that fails to report a version", func() {
		exe := writeScript("broken", `exit 3`, 0o755)
		_, err := provision.Init(context.TODO(), provision.Config{ExecutablePath: exe})
		Expect(err).To(MatchError(errors.ErrExecutableVersion))
	})

	It("rejects missing and non-executable files", func() {
		_, err := provision.Init(context.TODO(), provision.Config{ExecutablePath: filepath.Join(dir, "nope")})
		Expect(err).To(MatchError(errors.ErrExecutableNotFound))

		plain := writeScript("plain", `echo x`, 0o644)
		_, err = provision.Init(context.TODO(), provision.Config{ExecutablePath: plain})
		Expect(err).To(MatchError(errors.ErrExecutableNotFound))

		_, err = provision.Init(context.TODO(), provision.Config{ExecutablePath: dir})
		Expect(err).To(MatchError(errors.ErrExecutableNotFound))
	})
})
