package domain

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ошибку, если запись с таким ID уже существует.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound, если его нет.
	Get(id string) (Product, error)
	// Save применяет обновления к товару с учётом optimistic locking.
	Save(product Product) error
	// AdjustAvailable атомарно изменяет доступный остаток на delta.
	// При delta < 0 возвращает *InsufficientStockError, если остатка не хватает;
	// результат никогда не выходит за пределы 0..TotalStock.
	AdjustAvailable(id string, delta int32) (Product, error)
	// DecrementAvailableAll применяет списания по принципу всё-или-ничего:
	// либо остатки уменьшены по всем позициям, либо ни по одной.
	DecrementAvailableAll(decs []StockDecrement) error
}

// AssignmentRepository описывает хранилище закреплений товара за магазинами.
// Хранилище обязано поддерживать уникальность пары (ProductID, ShopID).
type AssignmentRepository interface {
	// Create сохраняет новое закрепление или возвращает ErrAssignmentExists,
	// если пара (product, shop) уже занята.
	Create(assignment Assignment) error
	// Get возвращает закрепление по идентификатору или ErrAssignmentNotFound.
	Get(id string) (Assignment, error)
	// FindByProductShop ищет закрепление по паре (product, shop)
	// или возвращает ErrAssignmentNotFound.
	FindByProductShop(productID, shopID string) (Assignment, error)
	// ListByShop возвращает все закрепления магазина.
	ListByShop(shopID string) ([]Assignment, error)
	// Save применяет обновления с учётом optimistic locking.
	Save(assignment Assignment) error
}

// AssignmentRequestRepository хранит заявки кладовщиков на закрепления.
type AssignmentRequestRepository interface {
	Create(request AssignmentRequest) error
	Get(id string) (AssignmentRequest, error)
	ListPending(limit int) ([]AssignmentRequest, error)
	Save(request AssignmentRequest) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByShop возвращает заказы магазина с опциональным ограничением на количество.
	ListByShop(shopID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	// Позиции неизменяемы и при сохранении не перезаписываются.
	Save(order Order) error
}

// PaymentRepository хранит зафиксированные платежи по заказам.
type PaymentRepository interface {
	Append(payment Payment) error
	ListByOrder(orderID string) ([]Payment, error)
}

// ActivityRepository хранит журнал аудита.
type ActivityRepository interface {
	Append(entry ActivityEntry) error
	ListByUser(userID string, limit int) ([]ActivityEntry, error)
}
