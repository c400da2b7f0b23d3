/**
 *
 * 双端队列，元素类型为 float64
 * 电势序列从读出端开始向漂移阴极方向逐个生成，使用 AddFirst 即可得到从漂移端开始的顺序
 *
 */

package deque

type Deque interface {
	// 队列的长度
	Size() int

	// 队头、队尾元素
	First() float64
	Last() float64

	// 正向遍历
	Traverse(f func(i int, v float64))

	// 在队列头部增加一个元素
	AddFirst(v float64)

	// 按顺序复制出全部元素
	Slice() []float64

	IsFull() bool
}
