package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/datamodels/user"
	"github.com/example/goshop/internal/errs"
)

type paymentFixture struct {
	orders    *OrderService
	repo      *fakeOrderRepo
	gateway   *fakeGateway
	publisher *fakePublisher
	payments  *PaymentService
}

func newPaymentFixture(t *testing.T, users ...*user.User) *paymentFixture {
	t.Helper()
	repo := newFakeOrderRepo()
	orders := newTestOrderService(repo)
	gateway := &fakeGateway{validSig: "good-signature"}
	publisher := &fakePublisher{}
	payments := NewPaymentService(orders, newFakeUserRepo(users...), gateway, publisher, nil, nil)
	return &paymentFixture{
		orders:    orders,
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		payments:  payments,
	}
}

func (f *paymentFixture) createGuestOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), &CreateOrderInput{
		Guest:         &order.GuestInfo{Email: "guest@example.com", Name: "Guest"},
		Items:         []ItemInput{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}},
		Address:       testAddress(),
		PaymentMethod: order.MethodPaystack,
	})
	require.NoError(t, err)
	return o
}

func successWebhook(reference string) []byte {
	return []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":"%s"}}`, reference))
}

func TestInitPayment_AttachesReferenceOnce(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)

	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reference)
	assert.NotEmpty(t, res.AuthorizationURL)

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Reference, got.PaystackRef)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)

	// 引用号未清除时再次发起必须失败
	_, err = f.payments.InitPayment(context.Background(), o.ID)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestInitPayment_UsesGuestEmailAndKoboAmount(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)

	_, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	require.Len(t, f.gateway.initCalls, 1)
	call := f.gateway.initCalls[0]
	assert.Equal(t, "guest@example.com", call.Email)
	assert.Equal(t, o.Total*100, call.AmountKobo, "naira converts to kobo at the gateway boundary")
	assert.Equal(t, o.ID, call.OrderID)
}

func TestInitPayment_UsesRegisteredCustomerEmail(t *testing.T) {
	f := newPaymentFixture(t, &user.User{ID: 7, Email: "ada@example.com"})

	o, err := f.orders.Create(context.Background(), &CreateOrderInput{
		UserID:        7,
		Items:         []ItemInput{{ProductID: 1, Quantity: 1}},
		Address:       testAddress(),
		PaymentMethod: order.MethodPaystack,
	})
	require.NoError(t, err)

	_, err = f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	require.Len(t, f.gateway.initCalls, 1)
	assert.Equal(t, "ada@example.com", f.gateway.initCalls[0].Email)
}

func TestInitPayment_GatewayFailureLeavesOrderClean(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.initErr = errs.Gateway("status 503")
	o := f.createGuestOrder(t)

	_, err := f.payments.InitPayment(context.Background(), o.ID)
	require.Error(t, err)
	assert.True(t, errs.IsGateway(err))

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PaystackRef, "reference must not be attached on gateway failure")
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)

	// 网关恢复后同一订单可以直接重试
	f.gateway.initErr = nil
	_, err = f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)
}

func TestInitPayment_PaidOrderRejected(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)

	_, err := f.orders.MarkPaid(context.Background(), o.ID)
	require.NoError(t, err)

	_, err = f.payments.InitPayment(context.Background(), o.ID)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestInitPayment_UnknownOrder(t *testing.T) {
	f := newPaymentFixture(t)

	_, err := f.payments.InitPayment(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestVerifyPayment_SuccessMarksPaid(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	got, success, err := f.payments.VerifyPayment(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.True(t, success)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, 1, f.publisher.count())
}

func TestVerifyPayment_RepeatIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	_, _, err = f.payments.VerifyPayment(context.Background(), res.Reference)
	require.NoError(t, err)
	got, success, err := f.payments.VerifyPayment(context.Background(), res.Reference)
	require.NoError(t, err)

	assert.True(t, success)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 1, f.publisher.count(), "only the winning transition publishes")
}

func TestVerifyPayment_NonSuccessLeavesPending(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.verifyStatus = "abandoned"
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	got, success, err := f.payments.VerifyPayment(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.False(t, success)
	// 不自动置 failed：稍后的回调仍可能确认成功
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)
	assert.Zero(t, f.publisher.count())
}

func TestVerifyPayment_UnknownReference(t *testing.T) {
	f := newPaymentFixture(t)

	_, _, err := f.payments.VerifyPayment(context.Background(), "goshop-nope")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestVerifyPayment_GatewayTimeoutIsRetryable(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	f.gateway.verifyErr = errs.Gateway("context deadline exceeded")
	_, _, err = f.payments.VerifyPayment(context.Background(), res.Reference)
	require.Error(t, err)
	assert.True(t, errs.IsGateway(err))

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus, "timeout is inconclusive, order stays pending")

	// 重试成功
	f.gateway.verifyErr = nil
	_, success, err := f.payments.VerifyPayment(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.True(t, success)
}

func TestWebhook_BadSignatureNeverMutates(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	err = f.payments.HandleWebhook(context.Background(), successWebhook(res.Reference), "forged")
	require.Error(t, err)
	assert.True(t, errs.IsUnauthorized(err))

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)
	assert.Zero(t, f.publisher.count())
}

func TestWebhook_ChargeSuccessMarksPaid(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	err = f.payments.HandleWebhook(context.Background(), successWebhook(res.Reference), "good-signature")
	require.NoError(t, err)

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, 1, f.publisher.count())
}

func TestWebhook_DuplicateDeliveryIsNoop(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	body := successWebhook(res.Reference)
	require.NoError(t, f.payments.HandleWebhook(context.Background(), body, "good-signature"))
	require.NoError(t, f.payments.HandleWebhook(context.Background(), body, "good-signature"))

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 1, f.publisher.count(), "duplicate webhook must not publish again")
}

func TestWebhook_OtherEventsAcknowledged(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	body := []byte(fmt.Sprintf(`{"event":"charge.dispute.create","data":{"reference":"%s"}}`, res.Reference))
	require.NoError(t, f.payments.HandleWebhook(context.Background(), body, "good-signature"))

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)
}

func TestWebhook_UnknownReferenceAcknowledged(t *testing.T) {
	f := newPaymentFixture(t)

	err := f.payments.HandleWebhook(context.Background(), successWebhook("goshop-ghost"), "good-signature")
	require.NoError(t, err, "unknown reference is acknowledged, not retried forever")
}

func TestWebhook_MalformedBodyAcknowledged(t *testing.T) {
	f := newPaymentFixture(t)

	err := f.payments.HandleWebhook(context.Background(), []byte("{not json"), "good-signature")
	require.NoError(t, err, "poison message must not be re-delivered forever")
}

func TestReconciliation_VerifyAndWebhookRace(t *testing.T) {
	f := newPaymentFixture(t)
	o := f.createGuestOrder(t)
	res, err := f.payments.InitPayment(context.Background(), o.ID)
	require.NoError(t, err)

	body := successWebhook(res.Reference)
	const rounds = 16
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := f.payments.VerifyPayment(context.Background(), res.Reference)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.payments.HandleWebhook(context.Background(), body, "good-signature"))
		}()
	}
	wg.Wait()

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, 1, f.publisher.count(), "any interleaving converges to one net transition")
}
