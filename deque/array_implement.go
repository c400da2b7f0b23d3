package deque

const (
	// 数组大小基数
	base = 8
)

var _ Deque = (*ArrDeque)(nil)

// ArrDeque is a ring buffer deque. It grows by doubling when full.
type ArrDeque struct {
	arr   []float64
	start int
	size  int
}

// 工厂方法
func NewArrDeque(capacity int) *ArrDeque {
	if capacity < base {
		capacity = base
	}
	remainder := capacity % base
	if remainder != 0 {
		capacity = capacity - remainder + base
	}
	return &ArrDeque{arr: make([]float64, capacity)}
}

func (ad *ArrDeque) Size() int {
	return ad.size
}

func (ad *ArrDeque) index(i int) int {
	if i < 0 || i >= ad.size {
		panic("index out of length")
	}
	return (ad.start + i) % len(ad.arr)
}

func (ad *ArrDeque) First() float64 {
	return ad.arr[ad.index(0)]
}

func (ad *ArrDeque) Last() float64 {
	return ad.arr[ad.index(ad.size-1)]
}

func (ad *ArrDeque) Traverse(f func(i int, v float64)) {
	for i := 0; i < ad.size; i++ {
		f(i, ad.arr[(ad.start+i)%len(ad.arr)])
	}
}

func (ad *ArrDeque) AddFirst(v float64) {
	if ad.IsFull() {
		ad.grow()
	}
	ad.start = (ad.start - 1 + len(ad.arr)) % len(ad.arr)
	ad.arr[ad.start] = v
	ad.size++
}

func (ad *ArrDeque) Slice() []float64 {
	out := make([]float64, 0, ad.size)
	ad.Traverse(func(_ int, v float64) {
		out = append(out, v)
	})
	return out
}

func (ad *ArrDeque) IsFull() bool {
	return ad.size == len(ad.arr)
}

// 扩容，元素重新从下标 0 开始排列
func (ad *ArrDeque) grow() {
	arr := make([]float64, len(ad.arr)*2)
	for i := 0; i < ad.size; i++ {
		arr[i] = ad.arr[(ad.start+i)%len(ad.arr)]
	}
	ad.arr = arr
	ad.start = 0
}
