package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reliefboard/internal/models"
)

func TestClassifyType(t *testing.T) {
	rules := DefaultTypeRules()
	tests := []struct {
		in   string
		want models.TaskType
	}{
		{"", models.TypeCleanup},
		{"清理", models.TypeCleanup},
		{"鏟泥", models.TypeCleanup},
		{"緊急救援", models.TypeRescue},
		{"RESCUE team", models.TypeRescue},
		{"Rescue", models.TypeRescue},
		{"物資", models.TypeSupplyDelivery},
		{"便當配送", models.TypeSupplyDelivery},
		{"醫療", models.TypeMedicalAid},
		{"中醫義診", models.TypeMedicalAid},
		{"避難所", models.TypeShelterSupport},
		{"Shelter", models.TypeShelterSupport},
		{"不明", models.TypeCleanup},
		// first group wins when several match
		{"清理後救援", models.TypeCleanup},
		{"救援物資", models.TypeRescue},
		// exact codes and labels
		{"medical_aid", models.TypeMedicalAid},
		{"repair_maintenance", models.TypeRepairMaintenance},
		{"EQUIPMENT_OPERATION", models.TypeEquipmentOperation},
		{"社區服務", models.TypeCommunityService},
		{"修繕維護", models.TypeRepairMaintenance},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyType(tt.in, rules), "input %q", tt.in)
	}
}

func TestClassifyType_AnyTextWithRescueKeyword(t *testing.T) {
	for _, s := range []string{"救援", "山區救援任務", "救援 RESCUE", "x救援y"} {
		assert.Equal(t, models.TypeRescue, ClassifyType(s, DefaultTypeRules()), s)
	}
}

func TestClassifyType_CustomOrder(t *testing.T) {
	rules := DefaultTypeRules()
	rules[0], rules[1] = rules[1], rules[0]
	assert.Equal(t, models.TypeRescue, ClassifyType("清理後救援", rules))
}

func TestClassifyStatus(t *testing.T) {
	rules := DefaultStatusRules()
	tests := []struct {
		in   string
		want models.TaskStatus
	}{
		{"", models.StatusPending},
		{"準備中", models.StatusPending},
		{"待審核", models.StatusPending},
		{"可認領", models.StatusAvailable},
		{"AVAILABLE", models.StatusAvailable},
		{"已認領", models.StatusClaimed},
		{"進行中", models.StatusInProgress},
		{"in_progress", models.StatusInProgress},
		{"已完成", models.StatusCompleted},
		{"已取消", models.StatusCancelled},
		{"cancelled", models.StatusCancelled},
		{"???", models.StatusPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyStatus(tt.in, rules), "input %q", tt.in)
	}
}

func TestClassify_ExactValuesRoundTrip(t *testing.T) {
	for _, typ := range models.TaskTypes {
		assert.Equal(t, typ, ClassifyType(string(typ), DefaultTypeRules()))
		assert.Equal(t, typ, ClassifyType(typ.Label(), DefaultTypeRules()))
	}
	for _, st := range models.TaskStatuses {
		assert.Equal(t, st, ClassifyStatus(string(st), DefaultStatusRules()))
		assert.Equal(t, st, ClassifyStatus(st.Label(), DefaultStatusRules()))
	}
}
