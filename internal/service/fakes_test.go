package service

import (
	"context"
	"sync"

	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/datamodels/product"
	"github.com/example/goshop/internal/datamodels/user"
	"github.com/example/goshop/internal/errs"
	"github.com/example/goshop/internal/infra/paystack"
)

// fakeOrderRepo 内存订单仓储。MarkPaid / AttachReference 在锁内
// 完成检查加更新，对测试而言等价于数据库的条件 UPDATE。
type fakeOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*order.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[int64]*order.Order{}}
}

func (r *fakeOrderRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, errs.NotFound("order", "%d", id)
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetByReference(_ context.Context, ref string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaystackRef == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, errs.NotFound("order", "reference %s", ref)
}

func (r *fakeOrderRepo) AttachReference(_ context.Context, id int64, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return errs.NotFound("order", "%d", id)
	}
	if o.PaystackRef != "" {
		return errs.Conflict("order %d already has a gateway reference", id)
	}
	o.PaystackRef = ref
	return nil
}

func (r *fakeOrderRepo) MarkPaid(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, errs.NotFound("order", "%d", id)
	}
	if o.PaymentStatus == order.PaymentPaid {
		return false, nil
	}
	o.PaymentStatus = order.PaymentPaid
	o.Status = order.StatusProcessing
	return true, nil
}

func (r *fakeOrderRepo) MarkRefunded(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.PaymentStatus != order.PaymentPaid {
		return errs.Conflict("order %d is not paid, cannot refund", id)
	}
	o.PaymentStatus = order.PaymentRefunded
	return nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return errs.NotFound("order", "%d", id)
	}
	o.Status = status
	return nil
}

func (r *fakeOrderRepo) ListRecent(_ context.Context, limit int) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for id := r.nextID; id > 0 && len(out) < limit; id-- {
		if o, ok := r.orders[id]; ok {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, userID int64) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeProductRepo 内存商品仓储
type fakeProductRepo struct {
	mu       sync.Mutex
	products map[int64]*product.Product
}

func newFakeProductRepo(ps ...*product.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[int64]*product.Product{}}
	for _, p := range ps {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, errs.NotFound("product", "%d", id)
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) ListOnline(_ context.Context) ([]*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*product.Product
	for _, p := range r.products {
		if p.Status == 1 {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) ListByCategory(ctx context.Context, _ string) ([]*product.Product, error) {
	return r.ListOnline(ctx)
}

func (r *fakeProductRepo) Create(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Update(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

// fakeUserRepo 内存用户仓储
type fakeUserRepo struct {
	users map[int64]*user.User
}

func newFakeUserRepo(us ...*user.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[int64]*user.User{}}
	for _, u := range us {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errs.NotFound("user", "%d", id)
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errs.NotFound("user", "%s", email)
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	u.ID = int64(len(r.users) + 1)
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) ListAll(_ context.Context) ([]*user.User, error) {
	var out []*user.User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

// fakeGateway 可编排的网关替身
type fakeGateway struct {
	mu sync.Mutex

	initErr      error
	verifyStatus string // Verify 返回的交易状态
	verifyErr    error
	validSig     string // 视为合法的签名值

	initCalls   []fakeInitCall
	verifyCalls []string
}

type fakeInitCall struct {
	Email      string
	AmountKobo int64
	OrderID    int64
	Reference  string
}

func (g *fakeGateway) Initialize(_ context.Context, email string, amountKobo int64, orderID int64, reference string) (*paystack.InitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.initCalls = append(g.initCalls, fakeInitCall{email, amountKobo, orderID, reference})
	return &paystack.InitResult{
		AuthorizationURL: "https://checkout.paystack.com/" + reference,
		AccessCode:       "ac_" + reference,
		Reference:        reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*paystack.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	g.verifyCalls = append(g.verifyCalls, reference)
	status := g.verifyStatus
	if status == "" {
		status = "success"
	}
	return &paystack.VerifyResult{Status: status, Reference: reference}, nil
}

func (g *fakeGateway) ValidSignature(_ []byte, signature string) bool {
	return signature == g.validSig
}

// fakePublisher 记录发布次数
type fakePublisher struct {
	mu        sync.Mutex
	published []ConfirmedMessage
	err       error
}

func (p *fakePublisher) PublishConfirmed(_ context.Context, orderID int64, reference string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, ConfirmedMessage{OrderID: orderID, Reference: reference})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}
