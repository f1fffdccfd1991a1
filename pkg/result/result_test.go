package result_test

import (
	"errors"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/TrevorEdris/transfer-utils/pkg/result"
)

var _ = Describe("Result", func() {
	It("captures a successful value", func() {
		r := result.Try(func() (bool, error) { return strconv.ParseBool("false") })
		Expect(r.IsOk()).To(BeTrue())
		Expect(r.Err()).NotTo(HaveOccurred())
		Expect(r.ValueOr(true)).To(BeFalse())
	})

	It("falls back to the default on failure", func() {
		r := result.Try(func() (bool, error) { return strconv.ParseBool("") })
		Expect(r.IsOk()).To(BeFalse())
		Expect(r.Err()).To(HaveOccurred())
		Expect(r.ValueOr(true)).To(BeTrue())
	})

	It("reports side effect failures", func() {
		boom := errors.New("boom")
		r := result.Do(func() error { return boom })
		Expect(r.IsOk()).To(BeFalse())
		_, err := r.Get()
		Expect(err).To(MatchError(boom))

		Expect(result.Do(func() error { return nil }).IsOk()).To(BeTrue())
	})

	It("treats Err with a nil cause as a failure", func() {
		r := result.Err[int](nil)
		Expect(r.IsOk()).To(BeFalse())
		Expect(r.ValueOr(7)).To(Equal(7))
		_, err := r.Get()
		Expect(err).To(MatchError(result.ErrNoCause))
		Expect(r.Err()).To(MatchError(result.ErrNoCause))
	})
})
