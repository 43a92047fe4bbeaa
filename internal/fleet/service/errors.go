package service

import "errors"

// 业务前置条件错误，handler 通过 errors.Is 映射为 4xx
var (
	ErrDeviceNotFound        = errors.New("设备不存在")
	ErrDuplicateOutbound     = errors.New("该设备已有未归还的出库记录")
	ErrInsufficientStock     = errors.New("库存不足")
	ErrRecordNotFound        = errors.New("出库记录不存在")
	ErrAlreadyReturned       = errors.New("该出库记录已归还")
	ErrReturnExceedsOutbound = errors.New("归还数量超过出库数量")
	ErrConfirmationRequired  = errors.New("该出库记录尚未归还，删除需指定 mode=force（不恢复库存和设备状态）或 mode=reconcile（恢复库存和设备状态）")
	ErrInventoryConflict     = errors.New("库存已被其他人修改，请刷新后重试")
	ErrDeviceBusy            = errors.New("设备正在被其他操作处理，请稍后重试")
	ErrInvalidStockKey       = errors.New("无效的库存项")
	ErrInvalidQuantity       = errors.New("数量不能为负数")
	ErrOperatorRequired      = errors.New("经办人不能为空")
	ErrDestinationRequired   = errors.New("目的地不能为空")
	ErrDeviceHasOpenOutbound = errors.New("设备存在未归还的出库记录，无法删除")
	ErrPrinterModelNotFound  = errors.New("打印机型号不存在")
	ErrPrinterModelInUse     = errors.New("该型号仍有纸张库存，无法删除")
	ErrPrinterNotFound       = errors.New("打印机不存在")
	ErrInvalidDeleteMode     = errors.New("无效的删除模式")
	ErrInvalidStatus         = errors.New("无效的状态")
	ErrDuplicateID           = errors.New("ID已存在")
	ErrInvalidInput          = errors.New("参数错误")
)

// StockShortageError 库存不足，消息指出第一项不足的物品
type StockShortageError struct {
	Message string
}

func (e *StockShortageError) Error() string {
	return e.Message
}

func (e *StockShortageError) Is(target error) bool {
	return target == ErrInsufficientStock
}
