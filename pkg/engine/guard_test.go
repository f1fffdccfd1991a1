package engine_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	pkgerrors "github.com/TrevorEdris/transfer-utils/pkg/errors"
)

var _ = Describe("Guard", func() {
	var (
		guard   *engine.Guard
		aborted int
	)

	BeforeEach(func() {
		aborted = 0
		guard = engine.NewGuard(context.Background(), func() { aborted++ })
	})

	It("allows one call at a time", func() {
		ctx, err := guard.Begin("put", "/a")
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.Err()).NotTo(HaveOccurred())

		_, err = guard.Begin("stat", "/b")
		Expect(err).To(MatchError(pkgerrors.ErrSessionBusy))
		Expect(pkgerrors.IsLocalError(err)).To(BeTrue())

		guard.End()
		_, err = guard.Begin("stat", "/b")
		Expect(err).NotTo(HaveOccurred())
	})

	It("refuses to abort when idle", func() {
		err := guard.Abort()
		Expect(err).To(MatchError(pkgerrors.ErrNothingToAbort))
		Expect(pkgerrors.IsLocalError(err)).To(BeTrue())
		Expect(aborted).To(BeZero())
	})

	It("cancels the in-flight context on abort", func() {
		ctx, err := guard.Begin("put", "/a")
		Expect(err).NotTo(HaveOccurred())

		Expect(guard.Abort()).To(Succeed())
		Expect(ctx.Err()).To(MatchError(context.Canceled))
		Expect(aborted).To(Equal(1))
		Expect(guard.Aborted()).To(BeTrue())

		failure := guard.Fail("put", "/a", errors.New("connection lost"))
		Expect(failure).To(MatchError(pkgerrors.ErrAborted))
		Expect(pkgerrors.IsLocalError(failure)).To(BeTrue())
		guard.End()

		_, err = guard.Begin("stat", "/a")
		Expect(err).To(MatchError(pkgerrors.ErrSessionClosed))
		Expect(guard.Abort()).To(MatchError(pkgerrors.ErrSessionClosed))
	})

	It("reports remote failures as protocol errors", func() {
		err := guard.Fail("mkdir", "/a", errors.New("permission denied"))
		Expect(pkgerrors.IsProtocolError(err)).To(BeTrue())
		Expect(err.Error()).To(Equal("protocol error during mkdir /a: permission denied"))
	})

	It("is not cancelled by its parent", func() {
		parent, cancel := context.WithCancel(context.Background())
		g := engine.NewGuard(parent, nil)
		cancel()

		ctx, err := g.Begin("stat", "/")
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.Err()).NotTo(HaveOccurred())
	})

	It("closes once", func() {
		Expect(guard.Close()).To(BeTrue())
		Expect(guard.Close()).To(BeFalse())
		_, err := guard.Begin("stat", "/")
		Expect(err).To(MatchError(pkgerrors.ErrSessionClosed))
	})
})
